package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, body string) error
}

// NoOpProvider drops mail on the floor. Used when SMTP is not configured
// and in tests.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, body string) error {
	return nil
}
