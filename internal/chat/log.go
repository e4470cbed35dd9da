package chat

import (
	"sync"
	"time"
)

type Sender string

const (
	SenderMe    Sender = "me"
	SenderOther Sender = "other"
)

type Message struct {
	Text   string    `json:"text"`
	Sender Sender    `json:"sender"`
	At     time.Time `json:"-"`
}

// Log is the ordered, append only history of one chat connection.
type Log struct {
	mutex    sync.RWMutex
	messages []Message
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(m Message) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.messages = append(l.messages, m)
}

// Messages returns a copy, callers may keep or modify it freely.
func (l *Log) Messages() []Message {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.messages)
}

// Since returns the messages appended after the first offset ones and the
// offset to pass on the next call.
func (l *Log) Since(offset int) ([]Message, int) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(l.messages) {
		return nil, len(l.messages)
	}
	out := make([]Message, len(l.messages)-offset)
	copy(out, l.messages[offset:])
	return out, len(l.messages)
}
