package report

import (
	"testing"
	"time"

	"codetrail/internal/model"
)

type fakeStore struct {
	stats    model.DailyStats
	sessions []model.Session
	insights map[string]model.SessionInsight
	streak   model.Streak

	gotStatsDate  string
	gotFilter     model.SessionFilter
	gotInsightIDs []string
}

func (f *fakeStore) GetDailyStatsFor(date string) (model.DailyStats, error) {
	f.gotStatsDate = date
	return f.stats, nil
}

func (f *fakeStore) GetSessions(filter model.SessionFilter) ([]model.Session, error) {
	f.gotFilter = filter
	return f.sessions, nil
}

func (f *fakeStore) GetInsightsFor(ids []string) (map[string]model.SessionInsight, error) {
	f.gotInsightIDs = ids
	return f.insights, nil
}

func (f *fakeStore) GetStreak() (model.Streak, error) {
	return f.streak, nil
}

func ts(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.Local)
}

func tsp(h, m int) *time.Time {
	t := ts(h, m)
	return &t
}

func TestDaily(t *testing.T) {
	fs := &fakeStore{
		stats: model.DailyStats{Date: "2026-03-10", SessionCount: 2, MessageCount: 7},
		sessions: []model.Session{
			{ID: "a", StartedAt: ts(9, 0), EndedAt: tsp(9, 30)},
			{ID: "b", StartedAt: ts(11, 0), EndedAt: tsp(11, 10)},
			{ID: "c", StartedAt: ts(13, 0)}, // still open
		},
		insights: map[string]model.SessionInsight{
			"a": {SessionID: "a", Summary: "insight for a"},
		},
		streak: model.Streak{CurrentStreak: 3, LongestStreak: 9, TotalActiveDays: 40},
	}

	rep, err := Daily(fs, "2026-03-10")
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	if fs.gotStatsDate != "2026-03-10" || fs.gotFilter.Date != "2026-03-10" {
		t.Errorf("store queried with dates %q / %q", fs.gotStatsDate, fs.gotFilter.Date)
	}
	if len(fs.gotInsightIDs) != 3 {
		t.Errorf("insights looked up for %d sessions, want 3", len(fs.gotInsightIDs))
	}

	if rep.Stats.MessageCount != 7 {
		t.Errorf("stats not carried through: %+v", rep.Stats)
	}
	if rep.Streak.CurrentStreak != 3 {
		t.Errorf("streak not carried through: %+v", rep.Streak)
	}
	if len(rep.Sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(rep.Sessions))
	}
	if rep.Sessions[0].Insight == nil || rep.Sessions[0].Insight.Summary != "insight for a" {
		t.Errorf("insight not attached to session a: %+v", rep.Sessions[0].Insight)
	}
	if rep.Sessions[2].Insight != nil {
		t.Error("open session got an insight it does not have")
	}

	if rep.EndedSessions != 2 {
		t.Errorf("ended sessions = %d, want 2", rep.EndedSessions)
	}
	// (30m + 10m) / 2 = 20 minutes.
	if rep.AvgDurationSecs != 1200 {
		t.Errorf("avg duration = %v secs, want 1200", rep.AvgDurationSecs)
	}
}

func TestDaily_EmptyDateMeansToday(t *testing.T) {
	fs := &fakeStore{insights: map[string]model.SessionInsight{}}
	rep, err := Daily(fs, "")
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	today := time.Now().Format("2006-01-02")
	if rep.Date != today || fs.gotStatsDate != today {
		t.Errorf("date = %q / queried %q, want %q", rep.Date, fs.gotStatsDate, today)
	}
	if rep.EndedSessions != 0 || rep.AvgDurationSecs != 0 {
		t.Errorf("empty day report = %+v", rep)
	}
}
