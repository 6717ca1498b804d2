package rate

import "time"

// Route names with dedicated policies.
const (
	RouteSignup         = "signup"
	RouteLogin          = "login"
	RouteVerify         = "verify"
	RouteForgotPassword = "forgot-password"
	RouteResetPassword  = "reset-password"
)

// Policy is the budget for one route: Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) valid() bool {
	return p.Limit > 0 && p.Window > 0
}

// DefaultPolicy applies to routes without an entry in the policy table.
func DefaultPolicy() Policy {
	return Policy{Limit: 100, Window: time.Minute}
}

// DefaultPolicies returns the per-route table used when none is configured.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		RouteForgotPassword: {Limit: 5, Window: 10 * time.Minute},
		RouteResetPassword:  {Limit: 10, Window: 5 * time.Minute},
		RouteSignup:         {Limit: 10, Window: 10 * time.Minute},
		RouteLogin:          {Limit: 30, Window: time.Minute},
	}
}

// Identity returns the counter identity for a request: the authenticated
// subject when known, otherwise the client address.
func Identity(subjectID, ip string) string {
	if subjectID != "" {
		return "user:" + subjectID
	}
	if ip == "" {
		return "ip:unknown"
	}
	return "ip:" + ip
}
