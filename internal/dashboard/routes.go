package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hexfoundry/herald/internal/account"
	"github.com/hexfoundry/herald/internal/fault"
	"github.com/hexfoundry/herald/internal/message"
	"github.com/hexfoundry/herald/internal/models"
)

// registerRoutes sets up the API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealth(opts))

	api := router.Group("/api")
	api.GET("/stats", handleStats(opts))
	api.GET("/messages", handleMessages(opts))
	api.GET("/accounts/pending", handlePendingAccounts(opts))
	api.POST("/messages/:id/retry", handleRetry(opts))
	api.POST("/messages/retry-all", handleRetryAll(opts))
}

func handleHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := opts.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleStats(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		loc, err := opts.Zones.Get(opts.Timezone)
		if err != nil {
			loc = time.Local
		}
		s, err := message.ComputeStats(opts.DB, opts.Now(), loc)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

type messageView struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title,omitempty"`
	Body         string     `json:"body"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Sent         bool       `json:"sent"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	SenderID     uint       `json:"sender_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

func handleMessages(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		msgs, err := message.List(opts.DB, message.ListFilters{
			Status: c.Query("status"),
			Limit:  limit,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, messageView{
				ID:           m.ID,
				Title:        m.Title,
				Body:         m.Body,
				ScheduledFor: m.ScheduledFor,
				Sent:         m.Sent,
				ErrorMessage: m.ErrorMessage,
				SenderID:     m.SenderID,
				CreatedAt:    m.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"messages": views})
	}
}

type accountView struct {
	ID        uint      `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name,omitempty"`
	Phone     string    `json:"phone"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func handlePendingAccounts(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		accts, err := account.ListPending(opts.DB)
		if err != nil {
			renderError(c, err)
			return
		}
		views := make([]accountView, 0, len(accts))
		for _, a := range accts {
			views = append(views, pendingView(a))
		}
		c.JSON(http.StatusOK, gin.H{"accounts": views})
	}
}

func pendingView(a models.Account) accountView {
	return accountView{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.PhoneNumber(),
		IsAdmin:   a.IsAdmin,
		CreatedAt: a.CreatedAt,
	}
}

func handleRetry(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message id must be numeric"})
			return
		}
		if err := message.Retry(opts.DB, uint(id), opts.Now()); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"retried": id})
	}
}

func handleRetryAll(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := message.RetryAll(opts.DB, opts.Now())
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"retried": n})
	}
}

func renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case fault.IsValidation(err):
		status = http.StatusBadRequest
	case fault.IsNotFound(err):
		status = http.StatusNotFound
	case fault.IsConflict(err):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": fault.UserMessage(err)})
}
