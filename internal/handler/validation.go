package handler

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/response"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)
	registerOnce    sync.Once
)

// registerValidators adds the custom binding tags used by request types.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
				return usernamePattern.MatchString(fl.Field().String())
			})
		}
	})
}

// bindJSON binds the body into req and answers 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	return bindWith(c, req, c.ShouldBindJSON)
}

// bindQuery binds query parameters into req and answers 400 on failure.
func bindQuery(c *gin.Context, req interface{}) bool {
	return bindWith(c, req, c.ShouldBindQuery)
}

func bindWith(c *gin.Context, req interface{}, bind func(interface{}) error) bool {
	err := bind(req)
	if err == nil {
		return true
	}

	l := log.Ctx(c.Request.Context())
	l.Warn().Err(err).Str(log.FieldPath, c.FullPath()).Msg("invalid request")

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonName(fe.Field())] = describe(fe)
		}
		response.ValidationError(c, "request validation failed", fields)
		return false
	}
	response.BadRequest(c, "malformed request body")
	return false
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "username":
		return "must be 3-30 letters, digits, underscores or hyphens"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}
