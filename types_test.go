package agenda

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		slug string
		ok   bool
	}{
		{"opening-keynote", true},
		{"go_track.2025", true},
		{"", false},
		{"   ", false},
		{"two words", false},
		{"a/b", false},
		{"tab\there", false},
		{strings.Repeat("a", MaxSlugLength), true},
		{strings.Repeat("a", MaxSlugLength+1), false},
	}

	for _, tt := range tests {
		err := ValidateSlug(tt.slug)
		if tt.ok && err != nil {
			t.Errorf("ValidateSlug(%q) = %v", tt.slug, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidSlug) {
			t.Errorf("ValidateSlug(%q) = %v, want ErrInvalidSlug", tt.slug, err)
		}
	}
}

func TestValidateYear(t *testing.T) {
	for _, year := range []int{MinYear, 2025, MaxYear} {
		if err := ValidateYear(year); err != nil {
			t.Errorf("ValidateYear(%d) = %v", year, err)
		}
	}
	for _, year := range []int{0, MinYear - 1, MaxYear + 1} {
		if !errors.Is(ValidateYear(year), ErrInvalidYear) {
			t.Errorf("ValidateYear(%d) should fail", year)
		}
	}
}

func TestBookmarkKind_IsValid(t *testing.T) {
	if !KindEvent.IsValid() || !KindTrack.IsValid() {
		t.Error("known kinds should be valid")
	}
	if BookmarkKind("speaker").IsValid() || BookmarkKind("").IsValid() {
		t.Error("unknown kinds should be invalid")
	}
}

func TestMergeStrategy_IsValid(t *testing.T) {
	for _, s := range []MergeStrategy{MergeStrategySkip, MergeStrategyReplace, MergeStrategyMerge} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if MergeStrategy("upsert").IsValid() {
		t.Error("unknown strategy should be invalid")
	}
}

func TestSyncReport_OK(t *testing.T) {
	var nilReport *SyncReport
	if nilReport.OK() {
		t.Error("nil report should not be OK")
	}
	r := &SyncReport{Bookmarks: SyncResult{Success: true}, Notes: SyncResult{Success: true}}
	if !r.OK() {
		t.Error("all-success report should be OK")
	}
	r.Notes.Success = false
	if r.OK() {
		t.Error("report with a failed category should not be OK")
	}
}

func TestCategories(t *testing.T) {
	got := Categories()
	if len(got) != 2 || got[0] != CategoryBookmarks || got[1] != CategoryNotes {
		t.Errorf("Categories() = %v", got)
	}
}
