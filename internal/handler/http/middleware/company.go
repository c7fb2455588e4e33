package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

// RequireCompany rejects tokens that are not bound to a company. Payroll data
// is always company scoped, so pending users are turned away here.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, user.ErrInvalidToken)
			return
		}

		companyID, ok := claims["company_id"].(string)
		if !ok || companyID == "" {
			response.HandleError(w, user.ErrCompanyIDRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}
