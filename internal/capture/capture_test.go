package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/oriys/edgeharness/internal/domain"
	"github.com/sirupsen/logrus"
)

// TestSession_LoggerOrderAndArgs 测试记录顺序、级别与原始参数保留。
func TestSession_LoggerOrderAndArgs(t *testing.T) {
	s := Begin()
	payload := map[string]any{"k": 1}

	l := s.Logger()
	l.Info("a")
	l.Debug("b", 2)
	l.Warn(payload)
	l.Error(errors.New("boom"))
	l.Print("console")

	recs := s.Records()
	if len(recs) != 5 {
		t.Fatalf("len(records) = %d, want 5", len(recs))
	}

	wantLevels := []domain.LogLevel{
		domain.LogLevelInfo, domain.LogLevelDebug, domain.LogLevelWarn, domain.LogLevelError, domain.LogLevelInfo,
	}
	for i, rec := range recs {
		if rec.Level != wantLevels[i] {
			t.Errorf("records[%d].Level = %s, want %s", i, rec.Level, wantLevels[i])
		}
		if _, err := time.Parse(domain.TimestampLayout, rec.Timestamp); err != nil {
			t.Errorf("records[%d].Timestamp %q is not ISO-8601: %v", i, rec.Timestamp, err)
		}
	}

	if len(recs[1].Message) != 2 || recs[1].Message[0] != "b" || recs[1].Message[1] != 2 {
		t.Errorf("debug message = %#v", recs[1].Message)
	}
	if m, ok := recs[2].Message[0].(map[string]any); !ok || m["k"] != 1 {
		t.Errorf("argument was not preserved: %#v", recs[2].Message)
	}
}

// TestSession_RecordsIsSnapshot 测试 Records 返回副本。
func TestSession_RecordsIsSnapshot(t *testing.T) {
	s := Begin()
	s.Logger().Info("first")
	snap := s.Records()
	s.Logger().Info("second")

	if len(snap) != 1 || s.Len() != 2 {
		t.Fatalf("snapshot len = %d, session len = %d", len(snap), s.Len())
	}
}

// TestLogger_LogUnknownLevel 测试未知级别按 info 记录。
func TestLogger_LogUnknownLevel(t *testing.T) {
	s := Begin()
	s.Logger().Log("verbose", "x")
	s.Logger().Log(domain.LogLevelWarn, "y")
	s.Logger().Infof("n=%d", 3)

	recs := s.Records()
	if recs[0].Level != domain.LogLevelInfo || recs[1].Level != domain.LogLevelWarn {
		t.Errorf("levels = %s, %s", recs[0].Level, recs[1].Level)
	}
	if recs[2].Message[0] != "n=3" {
		t.Errorf("Infof message = %#v", recs[2].Message)
	}
}

// TestSession_Logrus 测试 logrus 级别映射与字段保留。
func TestSession_Logrus(t *testing.T) {
	s := Begin()
	l := s.Logrus()

	l.Trace("t")
	l.WithField("user", "u1").Info("hello")
	l.WithError(errors.New("bad")).Warn("careful")
	l.Error("oops")

	recs := s.Records()
	if len(recs) != 4 {
		t.Fatalf("len(records) = %d, want 4", len(recs))
	}
	if recs[0].Level != domain.LogLevelDebug {
		t.Errorf("trace should map to debug, got %s", recs[0].Level)
	}
	fields, ok := recs[1].Message[1].(map[string]any)
	if !ok || fields["user"] != "u1" {
		t.Errorf("fields = %#v", recs[1].Message)
	}
	if f := recs[2].Message[1].(map[string]any); f[logrus.ErrorKey] != "bad" {
		t.Errorf("error field = %#v", f)
	}
	if len(recs[3].Message) != 1 || recs[3].Level != domain.LogLevelError {
		t.Errorf("record without fields = %#v", recs[3])
	}
}

// TestSession_LogrusFatalPanics 测试 Fatal 不退出进程而是触发 panic。
func TestSession_LogrusFatalPanics(t *testing.T) {
	s := Begin()
	defer func() {
		r := recover()
		if r != ErrFatalLogged {
			t.Fatalf("recover() = %v, want ErrFatalLogged", r)
		}
		if s.Len() != 1 {
			t.Errorf("fatal entry should still be recorded")
		}
	}()
	s.Logrus().Fatal("die")
}

// TestLineWriter 测试按行切分与残余内容写出。
func TestLineWriter(t *testing.T) {
	s := Begin()
	w := s.Writer(domain.LogLevelError)

	fmt.Fprint(w, "line one\r\nline ")
	fmt.Fprint(w, "two\npartial")
	if s.Len() != 2 {
		t.Fatalf("len = %d before close, want 2", s.Len())
	}
	w.Close()

	recs := s.Records()
	want := []string{"line one", "line two", "partial"}
	for i, rec := range recs {
		if rec.Message[0] != want[i] || rec.Level != domain.LogLevelError {
			t.Errorf("records[%d] = %#v", i, rec)
		}
	}
}

// TestContext 测试会话注入与回退日志器。
func TestContext(t *testing.T) {
	s := Begin()
	ctx := WithSession(context.Background(), s)
	if FromContext(ctx) != s {
		t.Fatal("FromContext did not return the bound session")
	}
	L(ctx).Info("x")
	if s.Len() != 1 {
		t.Errorf("L(ctx) did not write to the session")
	}
	if FromContext(context.Background()) != nil {
		t.Error("unbound context should have no session")
	}
	if L(context.Background()) != standardLogger {
		t.Error("unbound context should fall back to the standard logger")
	}
}

// TestSessions_Isolated 测试并发会话互不干扰。
func TestSessions_Isolated(t *testing.T) {
	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	for i := range sessions {
		sessions[i] = Begin()
		wg.Add(1)
		go func(s *Session, n int) {
			defer wg.Done()
			for j := 0; j < n; j++ {
				s.Logger().Info(j)
			}
		}(sessions[i], i+1)
	}
	wg.Wait()

	for i, s := range sessions {
		if s.Len() != i+1 {
			t.Errorf("session %d len = %d, want %d", i, s.Len(), i+1)
		}
	}
}

// TestRedirect 测试进程级重定向、互斥与恢复。
func TestRedirect(t *testing.T) {
	s := Begin()
	restore, err := Redirect(s)
	if err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}

	if _, err := Redirect(Begin()); !errors.Is(err, ErrRedirectActive) {
		t.Errorf("second Redirect err = %v, want ErrRedirectActive", err)
	}

	logrus.Info("from logrus")
	log.Print("from stdlib")
	restore()
	restore()

	recs := s.Records()
	if len(recs) != 2 {
		t.Fatalf("len(records) = %d, want 2: %#v", len(recs), recs)
	}
	if recs[0].Message[0] != "from logrus" || recs[1].Message[0] != "from stdlib" {
		t.Errorf("records = %#v", recs)
	}

	logrus.Debug("after restore")
	if s.Len() != 2 {
		t.Error("records captured after restore")
	}

	next, err := Redirect(Begin())
	if err != nil {
		t.Fatalf("Redirect after restore failed: %v", err)
	}
	next()
}
