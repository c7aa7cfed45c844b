package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// creditMarkers are matched against error text when no typed status is available.
var creditMarkers = []string{
	"402",
	"requires more credits",
	"can only afford",
	"'code': 402",
	`"code": 402`,
}

// IsCreditExhausted reports whether err means the provider account lacks credits for the
// request. Typed provider errors are checked first; the text match covers errors that reach
// here without a status code.
func IsCreditExhausted(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusPaymentRequired || fmt.Sprint(apiErr.Code) == "402" {
			return true
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusPaymentRequired {
		return true
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusPaymentRequired {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range creditMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
