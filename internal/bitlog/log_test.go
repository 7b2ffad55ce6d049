package bitlog

import "testing"

func TestSetStatusIsolatesAdjacentSlots(t *testing.T) {
	s := NewStore()
	if err := s.SetStatus("h1", "2025-03-01", Morning, StatusDone); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SetStatus("h1", "2025-03-01", Evening, StatusDeferred); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := s.SetStatus("h1", "2025-03-02", Morning, StatusDonePlus); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	cases := []struct {
		date string
		t    Time
		want Status
	}{
		{"2025-03-01", Morning, StatusDone},
		{"2025-03-01", Afternoon, StatusNull},
		{"2025-03-01", Evening, StatusDeferred},
		{"2025-03-02", Morning, StatusDonePlus},
		{"2025-03-02", Evening, StatusNull},
	}
	for _, c := range cases {
		got, err := s.GetStatus("h1", c.date, c.t)
		if err != nil {
			t.Fatalf("GetStatus(%s, %s): %v", c.date, c.t, err)
		}
		if got != c.want {
			t.Errorf("GetStatus(%s, %s) = %s, want %s", c.date, c.t, got, c.want)
		}
	}
}

func TestSetStatusOverwriteLeavesOtherDaysUntouched(t *testing.T) {
	s := NewStore()
	mustSet(t, s, "h1", "2025-03-15", Afternoon, StatusDone)
	mustSet(t, s, "h1", "2025-03-15", Afternoon, StatusDeferred)

	got, err := s.GetStatus("h1", "2025-03-15", Afternoon)
	if err != nil {
		t.Fatal(err)
	}
	if got != StatusDeferred {
		t.Errorf("overwrite: got %s, want %s", got, StatusDeferred)
	}

	other, err := s.GetStatus("h1", "2025-03-14", Afternoon)
	if err != nil {
		t.Fatal(err)
	}
	if other != StatusNull {
		t.Errorf("neighboring day disturbed: got %s", other)
	}
}

func TestHasMonthDistinguishesNoRecordFromNullStatus(t *testing.T) {
	s := NewStore()
	if s.HasMonth("h1", "2025-03-01") {
		t.Fatal("HasMonth true before any write")
	}
	mustSet(t, s, "h1", "2025-03-01", Morning, StatusNull)
	if !s.HasMonth("h1", "2025-03-01") {
		t.Fatal("HasMonth false after an explicit (even null) write")
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	s := NewStore()
	mustSet(t, s, "h1", "2025-03-01", Morning, StatusDone)
	mustSet(t, s, "h1", "2025-03-31", Evening, StatusDonePlus)
	mustSet(t, s, "h2", "2025-04-01", Afternoon, StatusDeferred)

	packed := s.PackBinaryLogs()
	restored := NewStore()
	restored.UnpackBinaryLogs(packed)

	for _, k := range s.Keys() {
		want := s.Raw(k)
		got := restored.Raw(k)
		if got == nil || got.Cmp(want) != 0 {
			t.Errorf("key %q: round trip mismatch, want %v got %v", k, want, got)
		}
	}
}

func TestSerializeDeserializeCloudRoundTrip(t *testing.T) {
	s := NewStore()
	mustSet(t, s, "h1", "2025-03-01", Morning, StatusDone)
	mustSet(t, s, "h1", "2025-03-02", Evening, StatusDonePlus)

	pairs := s.SerializeLogsForCloud()
	restored := NewStore()
	if err := restored.DeserializeLogsFromCloud(pairs); err != nil {
		t.Fatalf("DeserializeLogsFromCloud: %v", err)
	}

	for _, k := range s.Keys() {
		if restored.Raw(k).Cmp(s.Raw(k)) != 0 {
			t.Errorf("key %q did not round trip", k)
		}
	}
}

func TestMergeFromCloudRejectsBadHex(t *testing.T) {
	s := NewStore()
	err := s.MergeFromCloud([][2]string{{"h1_2025-03", "not-hex!"}})
	if err == nil {
		t.Fatal("expected error for malformed hex")
	}
}

func TestPruneLogsForHabitOnlyRemovesItsOwnKeys(t *testing.T) {
	s := NewStore()
	mustSet(t, s, "h1", "2025-03-01", Morning, StatusDone)
	mustSet(t, s, "h12", "2025-03-01", Morning, StatusDone)

	s.PruneLogsForHabit("h1")

	if s.Raw(Key("h1", "2025-03")) != nil {
		t.Error("h1's entry survived prune")
	}
	if s.Raw(Key("h12", "2025-03")) == nil {
		t.Error("h12's entry was pruned by a plain-prefix match on h1")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewStore()
	mustSet(t, s, "h1", "2025-03-01", Morning, StatusDone)
	clone := s.Clone()
	mustSet(t, clone, "h1", "2025-03-01", Afternoon, StatusDone)

	orig, err := s.GetStatus("h1", "2025-03-01", Afternoon)
	if err != nil {
		t.Fatal(err)
	}
	if orig != StatusNull {
		t.Error("mutating the clone leaked back into the original")
	}
}

func mustSet(t *testing.T, s *Store, habitID, date string, tm Time, status Status) {
	t.Helper()
	if err := s.SetStatus(habitID, date, tm, status); err != nil {
		t.Fatalf("SetStatus(%s, %s, %s, %s): %v", habitID, date, tm, status, err)
	}
}
