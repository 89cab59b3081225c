package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ViewEnvelope is the discriminated result-view response: either ok with the
// exam and result, or not ok with an error code.
type ViewEnvelope struct {
	OK        bool        `json:"ok"`
	ErrorCode ErrCode     `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Exam      interface{} `json:"exam,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Metadata  Metadata    `json:"metadata"`
}

// ViewOK sends a successful result view.
func ViewOK(c *gin.Context, exam, result interface{}) {
	c.JSON(http.StatusOK, ViewEnvelope{
		OK:       true,
		Exam:     exam,
		Result:   result,
		Metadata: buildMetadata(c),
	})
}

// ViewFail sends a failed result view. Unclassified errors become SERVER_ERROR.
func ViewFail(c *gin.Context, log zerolog.Logger, err error) {
	status, code, msg := classify(c, log, err, ErrServerError)
	c.JSON(status, ViewEnvelope{
		ErrorCode: code,
		Message:   msg,
		Metadata:  buildMetadata(c),
	})
}
