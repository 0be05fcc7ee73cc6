package firestore

import (
	"time"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
	"github.com/fitglue/healthsync/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getStringPtr(m map[string]interface{}, key string) *string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

// Helper to safely get bool from map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// Firestore hands integers back as int64.
func getIntPtr(m map[string]interface{}, key string) *int {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case int64:
		i := int(n)
		return &i
	case int:
		return &n
	case float64:
		i := int(n)
		return &i
	}
	return nil
}

func getInt(m map[string]interface{}, key string) int {
	if p := getIntPtr(m, key); p != nil {
		return *p
	}
	return 0
}

func getFloatPtr(m map[string]interface{}, key string) *float64 {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}

func getStringSlice(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Nil pointers are stored as explicit nulls so absence survives a round trip.
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// --- UserRecord Converters ---

func UserToFirestore(u *types.UserRecord) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":    u.UserID,
		"created_at": u.CreatedAt,
	}
	if len(u.Integrations) > 0 {
		integrations := make(map[string]interface{}, len(u.Integrations))
		for provider, integ := range u.Integrations {
			if integ == nil {
				continue
			}
			integrations[provider] = IntegrationToFirestore(integ)
		}
		m["integrations"] = integrations
	}
	return m
}

func FirestoreToUser(m map[string]interface{}) *types.UserRecord {
	u := &types.UserRecord{
		UserID:    getString(m, "user_id"),
		CreatedAt: getTime(m, "created_at"),
	}
	if raw, ok := m["integrations"].(map[string]interface{}); ok {
		u.Integrations = make(map[string]*types.OAuthIntegration, len(raw))
		for provider, v := range raw {
			if im, ok := v.(map[string]interface{}); ok {
				u.Integrations[provider] = FirestoreToIntegration(im)
			}
		}
	}
	return u
}

// --- OAuthIntegration Converters ---

func IntegrationToFirestore(i *types.OAuthIntegration) map[string]interface{} {
	m := map[string]interface{}{
		"enabled":       i.Enabled,
		"access_token":  i.AccessToken,
		"refresh_token": i.RefreshToken,
		"expires_at":    i.ExpiresAt,
	}
	if i.ExternalUserID != "" {
		m["external_user_id"] = i.ExternalUserID
	}
	if i.Scope != "" {
		m["scope"] = i.Scope
	}
	if !i.LinkedAt.IsZero() {
		m["linked_at"] = i.LinkedAt
	}
	if !i.LastUsedAt.IsZero() {
		m["last_used_at"] = i.LastUsedAt
	}
	return m
}

func FirestoreToIntegration(m map[string]interface{}) *types.OAuthIntegration {
	return &types.OAuthIntegration{
		Enabled:        getBool(m, "enabled"),
		AccessToken:    getString(m, "access_token"),
		RefreshToken:   getString(m, "refresh_token"),
		ExpiresAt:      getTime(m, "expires_at"),
		ExternalUserID: getString(m, "external_user_id"),
		Scope:          getString(m, "scope"),
		LinkedAt:       getTime(m, "linked_at"),
		LastUsedAt:     getTime(m, "last_used_at"),
	}
}

// --- DailyMetrics Converters ---

func DailyMetricsToFirestore(r *dailymetrics.Record) map[string]interface{} {
	return map[string]interface{}{
		"date":                   r.Date,
		"steps":                  nullable(r.Steps),
		"resting_heart_rate":     nullable(r.RestingHeartRate),
		"bed_time":               nullable(r.BedTime),
		"wake_time":              nullable(r.WakeTime),
		"total_sleep_hours":      nullable(r.TotalSleepHours),
		"total_wake_minutes":     r.TotalWakeMinutes,
		"light_sleep_minutes":    r.LightSleepMinutes,
		"deep_sleep_minutes":     r.DeepSleepMinutes,
		"rem_sleep_minutes":      r.RemSleepMinutes,
		"breathing_rate":         nullable(r.BreathingRate),
		"heart_rate_variability": nullable(r.HeartRateVariability),
		"skin_temperature_delta": nullable(r.SkinTemperatureDelta),
		"spo2_average":           nullable(r.SpO2Average),
		"very_active_minutes":    r.VeryActiveMinutes,
		"fairly_active_minutes":  r.FairlyActiveMinutes,
		"lightly_active_minutes": r.LightlyActiveMinutes,
		"sedentary_minutes":      r.SedentaryMinutes,
		"updated_at":             time.Now(),
	}
}

func FirestoreToDailyMetrics(m map[string]interface{}) *dailymetrics.Record {
	return &dailymetrics.Record{
		Date:                 getString(m, "date"),
		Steps:                getIntPtr(m, "steps"),
		RestingHeartRate:     getIntPtr(m, "resting_heart_rate"),
		BedTime:              getStringPtr(m, "bed_time"),
		WakeTime:             getStringPtr(m, "wake_time"),
		TotalSleepHours:      getStringPtr(m, "total_sleep_hours"),
		TotalWakeMinutes:     getInt(m, "total_wake_minutes"),
		LightSleepMinutes:    getInt(m, "light_sleep_minutes"),
		DeepSleepMinutes:     getInt(m, "deep_sleep_minutes"),
		RemSleepMinutes:      getInt(m, "rem_sleep_minutes"),
		BreathingRate:        getFloatPtr(m, "breathing_rate"),
		HeartRateVariability: getFloatPtr(m, "heart_rate_variability"),
		SkinTemperatureDelta: getFloatPtr(m, "skin_temperature_delta"),
		SpO2Average:          getFloatPtr(m, "spo2_average"),
		VeryActiveMinutes:    getInt(m, "very_active_minutes"),
		FairlyActiveMinutes:  getInt(m, "fairly_active_minutes"),
		LightlyActiveMinutes: getInt(m, "lightly_active_minutes"),
		SedentaryMinutes:     getInt(m, "sedentary_minutes"),
	}
}

// --- SyncRun Converters ---

func SyncRunToFirestore(r *types.SyncRun) map[string]interface{} {
	m := map[string]interface{}{
		"run_id":       r.RunID,
		"user_id":      r.UserID,
		"kind":         string(r.Kind),
		"status":       string(r.Status),
		"start_date":   r.StartDate,
		"end_date":     r.EndDate,
		"succeeded":    r.Succeeded,
		"failed":       r.Failed,
		"failed_dates": r.FailedDates,
		"started_at":   r.StartedAt,
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if !r.FinishedAt.IsZero() {
		m["finished_at"] = r.FinishedAt
	}
	return m
}

func FirestoreToSyncRun(m map[string]interface{}) *types.SyncRun {
	return &types.SyncRun{
		RunID:       getString(m, "run_id"),
		UserID:      getString(m, "user_id"),
		Kind:        types.SyncRunKind(getString(m, "kind")),
		Status:      types.SyncRunStatus(getString(m, "status")),
		StartDate:   getString(m, "start_date"),
		EndDate:     getString(m, "end_date"),
		Succeeded:   getInt(m, "succeeded"),
		Failed:      getInt(m, "failed"),
		FailedDates: getStringSlice(m, "failed_dates"),
		Error:       getString(m, "error"),
		StartedAt:   getTime(m, "started_at"),
		FinishedAt:  getTime(m, "finished_at"),
	}
}

// --- OAuthState Converters ---

func OAuthStateToFirestore(s *types.OAuthState) map[string]interface{} {
	return map[string]interface{}{
		"state":      s.State,
		"user_id":    s.UserID,
		"provider":   s.Provider,
		"created_at": s.CreatedAt,
		"expires_at": s.ExpiresAt,
	}
}

func FirestoreToOAuthState(m map[string]interface{}) *types.OAuthState {
	return &types.OAuthState{
		State:     getString(m, "state"),
		UserID:    getString(m, "user_id"),
		Provider:  getString(m, "provider"),
		CreatedAt: getTime(m, "created_at"),
		ExpiresAt: getTime(m, "expires_at"),
	}
}
