package email

// Provider sends notification mail. Handlers and services depend on this
// interface, never on the SMTP implementation.
type Provider interface {
	Send(to, subject, htmlBody string) error
}

// NoopProvider is used when email is disabled in the configuration.
type NoopProvider struct{}

func (NoopProvider) Send(to, subject, htmlBody string) error {
	return nil
}
