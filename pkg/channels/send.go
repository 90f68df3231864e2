package channels

import (
	"errors"
	"time"
)

// SendNonBlock attempts to send a message without blocking.
// Returns error if the channel is full or closed.
func SendNonBlock[T any](ch chan<- T, msg T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrChannelClosed
		}
	}()

	select {
	case ch <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// SendWithTimeout sends a message with a timeout.
// Returns error if the timeout expires or channel is closed.
func SendWithTimeout[T any](ch chan<- T, msg T, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrChannelClosed
		}
	}()

	select {
	case ch <- msg:
		return nil
	case <-time.After(timeout):
		return ErrChannelTimeout
	}
}

// Replace sends msg on a buffered channel, discarding one unread value
// first if the buffer is full. It reports whether a value was discarded.
//
// Replace is only safe when the caller is the channel's single sender;
// otherwise another sender could refill the slot between drain and send.
func Replace[T any](ch chan T, msg T) (replaced bool, err error) {
	err = SendNonBlock(ch, msg)
	if err == nil || errors.Is(err, ErrChannelClosed) {
		return false, err
	}

	select {
	case <-ch:
		replaced = true
	default:
	}

	return replaced, SendNonBlock(ch, msg)
}
