package provider

import "context"

// AccountProvider supplies the single nullable default account id used by
// derived cashflow and settlement rows. A nil id is not an error: the
// reconciler simply withholds account-bound rows until one is configured.
type AccountProvider interface {
	DefaultAccountID(ctx context.Context, userID string) (*string, error)
}

// StaticAccountProvider returns a fixed default account id for every user.
type StaticAccountProvider struct {
	AccountID *string
}

// DefaultAccountID implements AccountProvider.
func (p StaticAccountProvider) DefaultAccountID(context.Context, string) (*string, error) {
	return p.AccountID, nil
}
