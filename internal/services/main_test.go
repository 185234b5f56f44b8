package services

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/graphilearn/engine/internal/session"
	"github.com/graphilearn/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

func learner() session.Viewer {
	return session.Viewer{UserID: uuid.New(), Email: "u1@example.com", Audience: "tab-" + uuid.NewString()}
}

func admin() session.Viewer {
	v := learner()
	v.Email = "admin@example.com"
	v.Admin = true
	return v
}
