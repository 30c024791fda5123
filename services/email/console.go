// Package email provides core.EmailService implementations.
package email

import (
	"fmt"
	"sync"

	"github.com/tmwangi/sauti/core"
)

// ConsoleService writes outgoing mail to the logger instead of sending it.
// Used in debug and test runs.
type ConsoleService struct {
	logger core.Logger
}

var _ core.EmailService = (*ConsoleService)(nil)

func NewConsoleService(logger core.Logger) *ConsoleService {
	return &ConsoleService{logger: logger}
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, m := range messages {
		if !m.HasRecipients() || !m.HasContent() {
			continue
		}
		svc.logger.Info(fmt.Sprintf("sending email to %v\nSubject: %s\n\n%s", m.To, m.Subject, m.Body))
	}
}

// MockService captures messages for assertions in tests.
type MockService struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

var _ core.EmailService = (*MockService)(nil)

func NewMockService() *MockService { return &MockService{} }

func (svc *MockService) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, m := range messages {
		if !m.HasRecipients() || !m.HasContent() {
			continue
		}
		svc.sent = append(svc.sent, m)
	}
}

func (svc *MockService) SentMessages() []*core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	out := make([]*core.EmailMessage, len(svc.sent))
	copy(out, svc.sent)
	return out
}
