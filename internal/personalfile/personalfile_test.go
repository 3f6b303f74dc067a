package personalfile

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/questionnaire/internal/filestore"
	"github.com/pavelanni/questionnaire/internal/model"
	"github.com/pavelanni/questionnaire/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store, *filestore.FileStore) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestService: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	files := filestore.NewMemFileStore()
	return New(s, files), s, files
}

func createTestUser(t *testing.T, s *store.Store, username, idnumber string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  username,
		IDNumber:     idnumber,
		PasswordHash: "x",
		Role:         model.UserRoleStudent,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return id
}

func createTestQuestionnaire(t *testing.T, s *store.Store, courseID int64) model.Questionnaire {
	t.Helper()
	id, err := s.CreateQuestionnaire(model.Questionnaire{CourseID: courseID, Name: "feedback"})
	if err != nil {
		t.Fatalf("createTestQuestionnaire: %v", err)
	}
	return model.Questionnaire{ID: id, CourseID: courseID, Name: "feedback"}
}

func stageFiles(t *testing.T, files *filestore.FileStore, contents map[string]string) string {
	t.Helper()
	draftID := files.NewDraft()
	for name, body := range contents {
		if err := files.SaveDraft(draftID, name, strings.NewReader(body)); err != nil {
			t.Fatalf("stageFiles %s: %v", name, err)
		}
	}
	return draftID
}

func readStored(t *testing.T, files *filestore.FileStore, itemID int64, filename string) string {
	t.Helper()
	f, err := files.Open(FileArea, itemID, filename)
	if err != nil {
		t.Fatalf("open stored file %s: %v", filename, err)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read stored file %s: %v", filename, err)
	}
	return string(body)
}

func TestImportMatchesAndReportsErrors(t *testing.T) {
	svc, s, files := newTestService(t)
	qnr := createTestQuestionnaire(t, s, 1)

	aliceID := createTestUser(t, s, "alice", "S1001")
	if err := s.Enrol(qnr.CourseID, aliceID); err != nil {
		t.Fatalf("Enrol: %v", err)
	}
	// carol exists but is not enrolled in the course.
	createTestUser(t, s, "carol", "S1003")

	draftID := stageFiles(t, files, map[string]string{
		"S1001.jpg": "alice bytes",
		"S1002.png": "nobody bytes",
		"S1003.pdf": "carol bytes",
	})

	result, err := svc.Import(qnr, draftID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1", result.Imported)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(result.Errors), result.Errors)
	}

	byID := map[string]ImportError{}
	for _, ie := range result.Errors {
		byID[ie.IDNumber] = ie
	}
	if byID["S1002"].Reason != ReasonUserNotFound {
		t.Errorf("S1002 reason = %q, want usernotfound", byID["S1002"].Reason)
	}
	if byID["S1003"].Reason != ReasonUserNotEnrolled {
		t.Errorf("S1003 reason = %q, want usernotenrolled", byID["S1003"].Reason)
	}

	record, err := s.GetPersonalFile(qnr.ID, aliceID)
	if err != nil {
		t.Fatalf("GetPersonalFile: %v", err)
	}
	if record == nil {
		t.Fatal("no record created for alice")
	}
	if record.Filename != "S1001.jpg" {
		t.Errorf("filename = %q, want S1001.jpg", record.Filename)
	}
	if record.IDNumber != "S1001" {
		t.Errorf("idnumber = %q, want S1001", record.IDNumber)
	}
	if got := readStored(t, files, record.ID, "S1001.jpg"); got != "alice bytes" {
		t.Errorf("stored bytes = %q", got)
	}

	// The staging area is gone regardless of the per-file failures.
	drafts, err := files.ListDraft(draftID)
	if err != nil {
		t.Fatalf("ListDraft: %v", err)
	}
	if len(drafts) != 0 {
		t.Errorf("staging area still holds %d files", len(drafts))
	}
}

func TestImportReplacesExistingFile(t *testing.T) {
	svc, s, files := newTestService(t)
	qnr := createTestQuestionnaire(t, s, 1)
	aliceID := createTestUser(t, s, "alice", "S1001")
	if err := s.Enrol(qnr.CourseID, aliceID); err != nil {
		t.Fatalf("Enrol: %v", err)
	}

	draftID := stageFiles(t, files, map[string]string{"S1001.jpg": "first"})
	if _, err := svc.Import(qnr, draftID); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	first, err := s.GetPersonalFile(qnr.ID, aliceID)
	if err != nil || first == nil {
		t.Fatalf("GetPersonalFile after first import: %v %v", first, err)
	}

	time.Sleep(10 * time.Millisecond)

	draftID = stageFiles(t, files, map[string]string{"S1001.png": "second"})
	if _, err := svc.Import(qnr, draftID); err != nil {
		t.Fatalf("second Import: %v", err)
	}

	second, err := s.GetPersonalFile(qnr.ID, aliceID)
	if err != nil || second == nil {
		t.Fatalf("GetPersonalFile after second import: %v %v", second, err)
	}
	if second.ID != first.ID {
		t.Errorf("re-import created a new record: %d != %d", second.ID, first.ID)
	}
	if second.Filename != "S1001.png" {
		t.Errorf("filename = %q, want S1001.png", second.Filename)
	}
	if !second.TimeModified.After(first.TimeModified) {
		t.Errorf("time_modified not bumped: %v <= %v", second.TimeModified, first.TimeModified)
	}

	// Old bytes are gone, new bytes are in place.
	if _, err := files.Open(FileArea, first.ID, "S1001.jpg"); err == nil {
		t.Error("replaced file still present")
	}
	if got := readStored(t, files, second.ID, "S1001.png"); got != "second" {
		t.Errorf("stored bytes = %q", got)
	}

	list, err := s.ListPersonalFiles(qnr.ID)
	if err != nil {
		t.Fatalf("ListPersonalFiles: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected a single record, got %d", len(list))
	}
}

func TestImportDuplicateIdentifiersLastWins(t *testing.T) {
	svc, s, files := newTestService(t)
	qnr := createTestQuestionnaire(t, s, 1)
	aliceID := createTestUser(t, s, "alice", "S1001")
	if err := s.Enrol(qnr.CourseID, aliceID); err != nil {
		t.Fatalf("Enrol: %v", err)
	}

	// Same identifier with two extensions. Drafts list in name order, so
	// the .png is processed last and wins.
	draftID := stageFiles(t, files, map[string]string{
		"S1001.jpg": "jpg bytes",
		"S1001.png": "png bytes",
	})
	result, err := svc.Import(qnr, draftID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2", result.Imported)
	}

	record, err := s.GetPersonalFile(qnr.ID, aliceID)
	if err != nil || record == nil {
		t.Fatalf("GetPersonalFile: %v %v", record, err)
	}
	if record.Filename != "S1001.png" {
		t.Errorf("filename = %q, want S1001.png", record.Filename)
	}
	if got := readStored(t, files, record.ID, "S1001.png"); got != "png bytes" {
		t.Errorf("stored bytes = %q", got)
	}
}

func TestImportCaseSensitiveMatch(t *testing.T) {
	svc, s, files := newTestService(t)
	qnr := createTestQuestionnaire(t, s, 1)
	id := createTestUser(t, s, "alice", "s1001")
	if err := s.Enrol(qnr.CourseID, id); err != nil {
		t.Fatalf("Enrol: %v", err)
	}

	draftID := stageFiles(t, files, map[string]string{"S1001.jpg": "x"})
	result, err := svc.Import(qnr, draftID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 0 {
		t.Errorf("imported = %d, want 0", result.Imported)
	}
	if len(result.Errors) != 1 || result.Errors[0].Reason != ReasonUserNotFound {
		t.Errorf("errors = %v, want one usernotfound", result.Errors)
	}
}

func TestImportFilenameWithoutExtension(t *testing.T) {
	svc, s, files := newTestService(t)
	qnr := createTestQuestionnaire(t, s, 1)
	id := createTestUser(t, s, "alice", "S1001")
	if err := s.Enrol(qnr.CourseID, id); err != nil {
		t.Fatalf("Enrol: %v", err)
	}

	draftID := stageFiles(t, files, map[string]string{"S1001": "raw"})
	result, err := svc.Import(qnr, draftID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("imported = %d, want 1: %v", result.Imported, result.Errors)
	}
	record, err := s.GetPersonalFile(qnr.ID, id)
	if err != nil || record == nil {
		t.Fatalf("GetPersonalFile: %v %v", record, err)
	}
	if record.Filename != "S1001" {
		t.Errorf("filename = %q, want S1001", record.Filename)
	}
}

func TestImportEmptyIdentifierNeverMatches(t *testing.T) {
	svc, s, files := newTestService(t)
	qnr := createTestQuestionnaire(t, s, 1)
	// A user without an institutional identifier must not be matched by a
	// dotfile whose basename reduces to the empty string.
	id := createTestUser(t, s, "teacher", "")
	if err := s.Enrol(qnr.CourseID, id); err != nil {
		t.Fatalf("Enrol: %v", err)
	}

	draftID := stageFiles(t, files, map[string]string{".hidden": "x"})
	result, err := svc.Import(qnr, draftID)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 0 {
		t.Errorf("imported = %d, want 0", result.Imported)
	}
	if len(result.Errors) != 1 || result.Errors[0].Reason != ReasonUserNotFound {
		t.Errorf("errors = %v, want one usernotfound", result.Errors)
	}
}

func TestImportEmptyDraft(t *testing.T) {
	svc, _, files := newTestService(t)
	qnr := model.Questionnaire{ID: 1, CourseID: 1}

	result, err := svc.Import(qnr, files.NewDraft())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Imported != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestDeleteScopedToQuestionnaire(t *testing.T) {
	svc, s, files := newTestService(t)
	qnrA := createTestQuestionnaire(t, s, 1)
	qnrB := createTestQuestionnaire(t, s, 1)
	id := createTestUser(t, s, "alice", "S1001")
	if err := s.Enrol(qnrA.CourseID, id); err != nil {
		t.Fatalf("Enrol: %v", err)
	}

	draftID := stageFiles(t, files, map[string]string{"S1001.jpg": "x"})
	if _, err := svc.Import(qnrA, draftID); err != nil {
		t.Fatalf("Import: %v", err)
	}
	record, err := s.GetPersonalFile(qnrA.ID, id)
	if err != nil || record == nil {
		t.Fatalf("GetPersonalFile: %v %v", record, err)
	}

	// Wrong questionnaire scope: silent no-op, record survives.
	deleted, err := svc.Delete(qnrB.ID, record.ID)
	if err != nil {
		t.Fatalf("Delete with wrong scope: %v", err)
	}
	if deleted {
		t.Error("delete under the wrong questionnaire reported success")
	}
	still, err := s.GetPersonalFile(qnrA.ID, id)
	if err != nil || still == nil {
		t.Fatal("record removed by out-of-scope delete")
	}
	if got := readStored(t, files, record.ID, "S1001.jpg"); got != "x" {
		t.Errorf("stored bytes = %q after out-of-scope delete", got)
	}

	// Correct scope removes record and bytes.
	deleted, err = svc.Delete(qnrA.ID, record.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatal("delete reported no-op")
	}
	gone, err := s.GetPersonalFile(qnrA.ID, id)
	if err != nil {
		t.Fatalf("GetPersonalFile: %v", err)
	}
	if gone != nil {
		t.Error("record still present after delete")
	}
	if _, err := files.Open(FileArea, record.ID, "S1001.jpg"); err == nil {
		t.Error("stored bytes still present after delete")
	}

	// Deleting an unknown id is a no-op, not an error.
	deleted, err = svc.Delete(qnrA.ID, 9999)
	if err != nil {
		t.Fatalf("Delete unknown id: %v", err)
	}
	if deleted {
		t.Error("delete of unknown id reported success")
	}
}

func TestIdentifierFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"S1001.jpg", "S1001"},
		{"S1001", "S1001"},
		{"archive.tar.gz", "archive.tar"},
		{"dir/S1002.png", "S1002"},
		{".hidden", ""},
	}
	for _, tt := range tests {
		if got := identifierFromFilename(tt.in); got != tt.want {
			t.Errorf("identifierFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
