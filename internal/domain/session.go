package domain

import "time"

// Session is the persisted proof that the local user has authenticated.
// It is written once at bootstrap after a successful auth flow and read by
// every protected command. HasLocalPassword is false for users whose only
// proof of identity was a federated (Google) exchange; it gates whether the
// password-upgrade affordance is offered.
type Session struct {
	Email            string
	HasLocalPassword bool
	Authenticated    bool
	CreatedAt        time.Time
}
