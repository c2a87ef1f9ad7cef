package fp

import (
	"errors"
	"sync"
)

var ErrDuplicateConsumer = errors.New("duplicate channel registration")

// Broadcaster sends values to any number of registered reader channels in a
// fan-out style. Readers registered without keys receive every value.
type Broadcaster[T comparable, V any] struct {
	readerMap    map[T][]chan V
	allReaders   []chan V
	readerMapMu  *sync.RWMutex
	allReadersMu *sync.RWMutex
}

func NewBroadcaster[T comparable, V any]() *Broadcaster[T, V] {
	return &Broadcaster[T, V]{
		readerMap:    map[T][]chan V{},
		readerMapMu:  &sync.RWMutex{},
		allReadersMu: &sync.RWMutex{},
	}
}

// Consume registers a channel to receive values as they are emitted. If no keys
// are provided the channel receives all values.
func (eb *Broadcaster[k, v]) Consume(reader chan v, keys ...k) error {
	if len(keys) > 0 {
		eb.readerMapMu.Lock()
		for _, key := range keys {
			eb.readerMap[key] = append(eb.readerMap[key], reader)
		}
		eb.readerMapMu.Unlock()

		return nil
	}

	eb.allReadersMu.Lock()
	defer eb.allReadersMu.Unlock()

	for _, existing := range eb.allReaders {
		if existing == reader {
			return ErrDuplicateConsumer
		}
	}

	eb.allReaders = append(eb.allReaders, reader)

	return nil
}

// Emit sends the value to all registered reader channels. Readers that are not
// draining their channel will block the emitter, so callers on hot paths should
// emit from their own goroutine or use buffered channels.
func (eb *Broadcaster[k, v]) Emit(key k, value v) {
	eb.allReadersMu.RLock()
	eb.readerMapMu.RLock()

	readerChannels := eb.allReaders
	if specific, found := eb.readerMap[key]; found {
		readerChannels = append(readerChannels, specific...)
	}

	for _, reader := range readerChannels {
		reader <- value
	}

	eb.readerMapMu.RUnlock()
	eb.allReadersMu.RUnlock()
}

func (eb *Broadcaster[k, v]) removeChan(channels []chan v, eventChan chan v) []chan v {
	var newChannels []chan v

	for _, channel := range channels {
		if channel != eventChan {
			newChannels = append(newChannels, channel)
		}
	}

	return newChannels
}

// Unregister removes the channel from all matching readers.
func (eb *Broadcaster[k, v]) Unregister(value chan v) {
	eb.readerMapMu.Lock()
	for eType, eventReaders := range eb.readerMap {
		eb.readerMap[eType] = eb.removeChan(eventReaders, value)
	}
	eb.readerMapMu.Unlock()

	eb.allReadersMu.Lock()
	eb.allReaders = eb.removeChan(eb.allReaders, value)
	eb.allReadersMu.Unlock()
}
