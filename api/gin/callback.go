package gin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/stepauth/services"
)

// Signature headers set by the second factor provider on webhook deliveries.
const (
	SignatureHeader      = "X-Authy-Signature"
	SignatureNonceHeader = "X-Authy-Signature-Nonce"
)

// PushCallbackHandler receives the provider's asynchronous approval webhook.
// The signed surface is reconstructed exactly as received: effective URL from
// the forwarded proto and host, and the JSON body flattened to the bracketed
// key form the provider signs.
func (a *AuthAPI) PushCallbackHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback body"})
		return
	}

	cb := services.Callback{
		Method:    c.Request.Method,
		URL:       effectiveURL(c),
		Params:    flattenParams("", payload),
		Nonce:     c.GetHeader(SignatureNonceHeader),
		Signature: c.GetHeader(SignatureHeader),
	}

	status, err := a.twoFactor.VerifyCallback(c.Request.Context(), cb)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().Str("status", string(status)).Msg("Push callback processed")
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// effectiveURL rebuilds scheme://host/path as the provider saw it when
// signing, honoring the reverse proxy's forwarded proto.
func effectiveURL(c *gin.Context) string {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}

// flattenParams renders a decoded JSON document into the flat bracketed
// key/value form used for signing: {"a":{"b":"c"}} becomes a[b]=c.
func flattenParams(prefix string, value interface{}) map[string]string {
	out := make(map[string]string)
	flattenInto(out, prefix, value)
	return out
}

func flattenInto(out map[string]string, prefix string, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "[" + k + "]"
			}
			flattenInto(out, key, child)
		}
	case []interface{}:
		for i, child := range v {
			flattenInto(out, fmt.Sprintf("%s[%d]", prefix, i), child)
		}
	case nil:
		out[prefix] = ""
	case bool:
		out[prefix] = fmt.Sprintf("%t", v)
	case json.Number:
		out[prefix] = v.String()
	case float64:
		// JSON numbers decode as float64; render integers without exponent.
		if v == float64(int64(v)) {
			out[prefix] = fmt.Sprintf("%d", int64(v))
		} else {
			out[prefix] = fmt.Sprintf("%v", v)
		}
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
}
