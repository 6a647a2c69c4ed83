package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashureev/campaign-consult/internal/probe"
	"github.com/ashureev/campaign-consult/internal/store"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JUDGE_PROVIDER", "none")
	t.Setenv("CONSULTATION_MODE", "quick")
	t.Setenv("MAX_QUESTIONS", "5")
	t.Setenv("REDIS_URL", "")
	t.Setenv("TEMPLATES_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChatArchivesBrief(t *testing.T) {
	isolateEnv(t)
	db := filepath.Join(t.TempDir(), "consultations.db")

	answers := strings.Join([]string{
		"artisan espresso bar downtown",
		"young professionals aged 25-35 who love specialty coffee",
		"around $2000 per month",
		"instagram and email",
	}, "\n") + "\n"

	out, err := execute(t, answers, "chat", "--db", db, "promote", "my", "coffee", "shop")
	require.NoError(t, err)
	require.Contains(t, out, "consultation completed")
	require.Contains(t, out, "# Campaign brief")

	out, err = execute(t, "", "briefs", "list", "--db", db, "--json")
	require.NoError(t, err)
	var briefs []store.BriefSummary
	require.NoError(t, json.Unmarshal([]byte(out), &briefs))
	require.Len(t, briefs, 1)
	require.NotEmpty(t, briefs[0].Goal)
	require.Equal(t, 4, briefs[0].QuestionCount)

	out, err = execute(t, "", "briefs", "list", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "SESSION")
	require.Contains(t, out, briefs[0].SessionID)

	out, err = execute(t, "", "briefs", "show", briefs[0].SessionID, "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "**Request:** promote my coffee shop")

	out, err = execute(t, "", "briefs", "show", briefs[0].SessionID, "--db", db, "--format", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"session_id": "`+briefs[0].SessionID+`"`)
}

func TestChatStopsAtEndOfInput(t *testing.T) {
	isolateEnv(t)
	db := filepath.Join(t.TempDir(), "consultations.db")

	out, err := execute(t, "promote my coffee shop\n", "chat", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "What would you like to market?")
	require.NotContains(t, out, "# Campaign brief")

	out, err = execute(t, "", "briefs", "list", "--db", db, "--json")
	require.NoError(t, err)
	require.JSONEq(t, "[]", out)
}

func TestBriefsShowErrors(t *testing.T) {
	isolateEnv(t)
	db := filepath.Join(t.TempDir(), "consultations.db")

	_, err := execute(t, "", "briefs", "show", "consultation_missing", "--db", db)
	require.ErrorContains(t, err, "no brief archived")

	_, err = execute(t, "", "briefs", "show", "--db", db)
	require.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	isolateEnv(t)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := probe.New(nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()
	defer func() {
		cancel()
		<-done
	}()

	out, err := execute(t, "", "health", "--addr", lis.Addr().String())
	require.NoError(t, err)
	require.Equal(t, "SERVING\n", out)
}
