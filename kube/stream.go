package kube

import (
	"io"

	"k8s.io/apimachinery/pkg/watch"

	"github.com/super-flat/nodewatcher/membership"
)

// watchStream adapts a client-go watcher to membership.Stream
type watchStream struct {
	watcher  watch.Interface
	received int
}

var _ membership.Stream = (*watchStream)(nil)

func newWatchStream(watcher watch.Interface) *watchStream {
	return &watchStream{watcher: watcher}
}

// Next returns the next event, io.EOF once the watcher's channel closes or a
// DecodeError for an event that does not describe a node.
func (s *watchStream) Next() (membership.ChangeEvent, error) {
	event, ok := <-s.watcher.ResultChan()
	if !ok {
		return membership.ChangeEvent{}, io.EOF
	}
	s.received++
	evt, err := EventFrom(event)
	if err != nil {
		if de, ok := err.(*DecodeError); ok {
			de.Position = s.received
		}
		return membership.ChangeEvent{}, err
	}
	return evt, nil
}

// Close stops the watcher, which unblocks a pending Next
func (s *watchStream) Close() error {
	s.watcher.Stop()
	return nil
}
