package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/supabase-community/auth-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tutorhub/tutorhub/internal/modules/serializer"
)

const identityKey = "identity"

// Identity is the authenticated caller. Handlers pass its fields to services
// explicitly; nothing below the middleware reads the gin context for it.
type Identity struct {
	ID          string
	DisplayName string
	IsTeacher   bool
}

// CurrentIdentity returns the identity set by UserAuth.
func CurrentIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

// UserAuth validates the Supabase bearer token and resolves the caller's
// identity. It also tags the current span with the user id.
func UserAuth(client auth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		_, authSpan := otel.Tracer("middleware").Start(ctx, "user_auth",
			trace.WithAttributes(attribute.String("middleware", "user_auth")))

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		user, err := client.WithToken(token).GetUser()
		if err != nil {
			authSpan.RecordError(err)
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		identity := &Identity{
			ID:          user.ID.String(),
			DisplayName: metadataString(user.UserMetadata, "display_name"),
			IsTeacher:   metadataBool(user.UserMetadata, "is_teacher"),
		}
		if identity.DisplayName == "" {
			identity.DisplayName = user.Email
		}

		rootSpan := trace.SpanFromContext(c.Request.Context())
		if rootSpan.SpanContext().IsValid() {
			rootSpan.SetAttributes(attribute.String("user_id", identity.ID))
		}

		authSpan.SetAttributes(
			attribute.String("user_id", identity.ID),
			attribute.Bool("authenticated", true),
		)
		authSpan.End()

		c.Set(identityKey, identity)
		c.Next()
	}
}

// TeacherOnly rejects callers whose identity is not a teacher. Must run
// after UserAuth.
func TeacherOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id == nil || !id.IsTeacher {
			c.AbortWithStatusJSON(http.StatusForbidden,
				serializer.Err(http.StatusForbidden, "teacher role required", nil))
			return
		}
		c.Next()
	}
}

func metadataString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metadataBool(meta map[string]interface{}, key string) bool {
	if meta == nil {
		return false
	}
	if v, ok := meta[key].(bool); ok {
		return v
	}
	return false
}
