package backend

import "github.com/vanderheijden86/plmirror/pkg/model"

// Backend is the contract a mirror consumes: change notifications, point
// reads, and the mutations a user can request.
type Backend interface {
	RootID() int64
	Subscribe(fn func(Notification)) SubscriptionID
	Unsubscribe(id SubscriptionID)
	FetchChildren(id int64) ([]model.Item, error)
	FetchItem(id int64) (model.Item, bool)

	Delete(ids ...int64) error
	Move(ids []int64, dest int64, row int) error
	Play(id int64) error
	SetMode(m Mode, on bool)
	Mode(m Mode) bool
}

var _ Backend = (*Playlist)(nil)
