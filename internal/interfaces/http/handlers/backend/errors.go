package backend

import (
	rpc "github.com/pmaschool/authcore/internal/shared/rpcprotocol"
)

// Exception names as reported in error.data.name.
const (
	exceptionSessionExpired = "odoo.http.SessionExpiredException"
	exceptionAccessDenied   = "odoo.exceptions.AccessDenied"
	exceptionValidation     = "odoo.exceptions.ValidationError"
	exceptionServer         = "odoo.exceptions.UserError"
)

func sessionExpired() *rpc.Error {
	return &rpc.Error{
		Code:    rpc.CodeSessionExpired,
		Message: "Odoo Session Expired",
		Data: &rpc.ErrorData{
			Name:    exceptionSessionExpired,
			Message: "Session expired",
		},
	}
}

func accessDenied() *rpc.Error {
	return &rpc.Error{
		Code:    rpc.CodeServerError,
		Message: "Odoo Server Error",
		Data: &rpc.ErrorData{
			Name:      exceptionAccessDenied,
			Message:   "Access Denied",
			Arguments: []string{"Access Denied"},
		},
	}
}

func validationError(msg string) *rpc.Error {
	return &rpc.Error{
		Code:    rpc.CodeServerError,
		Message: "Odoo Server Error",
		Data: &rpc.ErrorData{
			Name:      exceptionValidation,
			Message:   msg,
			Arguments: []string{msg},
		},
	}
}

func serverError(msg string) *rpc.Error {
	return &rpc.Error{
		Code:    rpc.CodeServerError,
		Message: "Odoo Server Error",
		Data: &rpc.ErrorData{
			Name:      exceptionServer,
			Message:   msg,
			Arguments: []string{msg},
		},
	}
}

func invalidParams(err error) *rpc.Error {
	if rpcErr, ok := err.(*rpc.Error); ok {
		return rpcErr
	}
	return &rpc.Error{
		Code:    rpc.CodeServerError,
		Message: "Invalid parameters",
		Data: &rpc.ErrorData{
			Name:      "builtins.TypeError",
			Arguments: []string{err.Error()},
		},
	}
}
