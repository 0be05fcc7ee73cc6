package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	apperrors "github.com/fitglue/healthsync/pkg/errors"
	"github.com/fitglue/healthsync/pkg/fitbit"
	"github.com/fitglue/healthsync/pkg/pipeline"
	"github.com/fitglue/healthsync/pkg/testing/mocks"
)

// fitbitWorld drives the real fetcher and aggregator against a fake
// Fitbit API and captures what reaches the sinks.
type fitbitWorld struct {
	server     *httptest.Server
	responses  map[string]string
	failing    map[string]bool
	authorized bool

	rows        []*dailymetrics.Record
	annotations []string
	runErr      error
}

func (w *fitbitWorld) reset() {
	w.responses = map[string]string{}
	w.failing = map[string]bool{}
	w.authorized = true
	w.rows = nil
	w.annotations = nil
	w.runErr = nil
	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/1/user/-")
		for prefix := range w.failing {
			if strings.HasPrefix(path, prefix) {
				http.Error(rw, `{"errors":[{"errorType":"system"}]}`, http.StatusInternalServerError)
				return
			}
		}
		body, ok := w.responses[path]
		if !ok {
			body = `{}`
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(rw, body)
	}))
}

func (w *fitbitWorld) accountAuthorized() error {
	w.authorized = true
	return nil
}

func (w *fitbitWorld) accountNotAuthorized() error {
	w.authorized = false
	return nil
}

func (w *fitbitWorld) reportsStepsAndRestingHR(steps, resting int) error {
	// Activity and vitals for a 2024-01-12 target belong to 2024-01-10.
	w.responses["/activities/date/2024-01-10.json"] = fmt.Sprintf(`{"summary":{"steps":%d}}`, steps)
	w.responses["/activities/heart/date/2024-01-10/1d.json"] = fmt.Sprintf(`{"activities-heart":[{"value":{"restingHeartRate":%d}}]}`, resting)
	return nil
}

func (w *fitbitWorld) mainSleep(start, end string, asleep int) error {
	w.responses["/sleep/date/2024-01-11.json"] = fmt.Sprintf(
		`{"sleep":[{"isMainSleep":true,"startTime":%q,"endTime":%q,"minutesAsleep":%d}]}`, start, end, asleep)
	return nil
}

func (w *fitbitWorld) sleepKeepsFailing() error {
	w.failing["/sleep/"] = true
	return nil
}

func (w *fitbitWorld) pipelineRuns(date string) error {
	target, err := healthdate.Parse(date)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fetcher := fitbit.NewFetcher(w.server.Client(), logger)
	fetcher.BaseURL = w.server.URL
	fetcher.Backoff = fitbit.Backoff{MaxRetries: 3}

	tokens := &mocks.MockTokenProvider{
		HasAccessFunc: func(ctx context.Context) bool { return w.authorized },
	}

	d := &pipeline.Daily{
		Tokens:     tokens,
		Aggregator: fitbit.NewAggregator(fetcher, tokens, logger),
		Rows: &mocks.MockRowAppender{AppendRowFunc: func(ctx context.Context, r *dailymetrics.Record) error {
			w.rows = append(w.rows, r)
			return nil
		}},
		Annotations: &mocks.MockAnnotator{CreateAllDayAnnotationFunc: func(ctx context.Context, day time.Time, title, description string) error {
			w.annotations = append(w.annotations, title)
			return nil
		}},
		IssueState: func(ctx context.Context) (string, error) { return "feature-state", nil },
		Logger:     logger,
	}

	_, w.runErr = d.Run(context.Background(), target)
	return nil
}

func (w *fitbitWorld) lastRow() (*dailymetrics.Record, error) {
	if w.runErr != nil {
		return nil, fmt.Errorf("run failed: %w", w.runErr)
	}
	if len(w.rows) != 1 {
		return nil, fmt.Errorf("expected 1 row, got %d", len(w.rows))
	}
	return w.rows[0], nil
}

func (w *fitbitWorld) rowAppendedFor(date string) error {
	row, err := w.lastRow()
	if err != nil {
		return err
	}
	if row.Date != date {
		return fmt.Errorf("expected row date %s, got %s", date, row.Date)
	}
	return nil
}

// Column positions in dailymetrics.Headers. The sheet uses "Wake Time" twice,
// so lookups go by position.
const (
	colSteps      = 1
	colRestingHR  = 2
	colBedTime    = 3
	colWakeTime   = 4
	colSleepHours = 5
	colWakeMins   = 6
)

func (w *fitbitWorld) expectColumns(want map[int]string) error {
	row, err := w.lastRow()
	if err != nil {
		return err
	}
	values := row.Row()
	for col, v := range want {
		if values[col] != v {
			return fmt.Errorf("column %d (%s): expected %q, got %q", col, dailymetrics.Headers[col], v, values[col])
		}
	}
	return nil
}

func (w *fitbitWorld) rowHasStepsAndRestingHR(steps, resting string) error {
	return w.expectColumns(map[int]string{colSteps: steps, colRestingHR: resting})
}

func (w *fitbitWorld) rowHasBedAndWake(bed, wake string) error {
	return w.expectColumns(map[int]string{colBedTime: bed, colWakeTime: wake})
}

func (w *fitbitWorld) rowHasSleepHours(hours string) error {
	return w.expectColumns(map[int]string{colSleepHours: hours})
}

func (w *fitbitWorld) rowHasNoSleep() error {
	return w.expectColumns(map[int]string{colBedTime: "", colWakeTime: "", colSleepHours: "", colWakeMins: "0"})
}

func (w *fitbitWorld) annotationCreated(title string) error {
	for _, got := range w.annotations {
		if got == title {
			return nil
		}
	}
	return fmt.Errorf("expected annotation %q, got %v", title, w.annotations)
}

func (w *fitbitWorld) runFailsWithAuthorizationURL() error {
	if !errors.Is(w.runErr, apperrors.ErrAuthRequired) {
		return fmt.Errorf("expected authorization error, got %v", w.runErr)
	}
	if !strings.Contains(apperrors.AuthorizationURL(w.runErr), "feature-state") {
		return fmt.Errorf("authorization URL %q is missing the issued state", apperrors.AuthorizationURL(w.runErr))
	}
	return nil
}

func (w *fitbitWorld) noRowAppended() error {
	if len(w.rows) != 0 {
		return fmt.Errorf("expected no rows, got %d", len(w.rows))
	}
	return nil
}

func InitializeScenario(sc *godog.ScenarioContext) {
	w := &fitbitWorld{}

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		w.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		w.server.Close()
		return ctx, nil
	})

	sc.Step(`^the Fitbit account is authorized$`, w.accountAuthorized)
	sc.Step(`^the Fitbit account is not authorized$`, w.accountNotAuthorized)
	sc.Step(`^Fitbit reports (\d+) steps and a resting heart rate of (\d+)$`, w.reportsStepsAndRestingHR)
	sc.Step(`^a main sleep from "([^"]*)" to "([^"]*)" with (\d+) minutes asleep$`, w.mainSleep)
	sc.Step(`^the sleep endpoint keeps failing$`, w.sleepKeepsFailing)
	sc.Step(`^the pipeline runs for "([^"]*)"$`, w.pipelineRuns)
	sc.Step(`^a row is appended for "([^"]*)"$`, w.rowAppendedFor)
	sc.Step(`^the row has steps "([^"]*)" and resting heart rate "([^"]*)"$`, w.rowHasStepsAndRestingHR)
	sc.Step(`^the row has bed time "([^"]*)" and wake time "([^"]*)"$`, w.rowHasBedAndWake)
	sc.Step(`^the row has "([^"]*)" total sleep hours$`, w.rowHasSleepHours)
	sc.Step(`^the row has no sleep data$`, w.rowHasNoSleep)
	sc.Step(`^a calendar annotation titled "([^"]*)" is created$`, w.annotationCreated)
	sc.Step(`^the run fails with an authorization URL$`, w.runFailsWithAuthorizationURL)
	sc.Step(`^no row is appended$`, w.noRowAppended)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
