package store

import (
	"database/sql"
	"testing"

	"github.com/pavelanni/questionnaire/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, username, idnumber string, role model.UserRole) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  username,
		IDNumber:     idnumber,
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestQuestionnaire(t *testing.T, s *Store, courseID int64, name string) int64 {
	t.Helper()
	id, err := s.CreateQuestionnaire(model.Questionnaire{CourseID: courseID, Name: name})
	if err != nil {
		t.Fatalf("insertTestQuestionnaire: %v", err)
	}
	return id
}

func TestQuestionnaireCRUD(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListQuestionnaires()
	if err != nil {
		t.Fatalf("ListQuestionnaires: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	id := insertTestQuestionnaire(t, s, 3, "Course feedback")
	q, err := s.GetQuestionnaire(id)
	if err != nil {
		t.Fatalf("GetQuestionnaire: %v", err)
	}
	if q.Name != "Course feedback" || q.CourseID != 3 {
		t.Errorf("got %+v", q)
	}

	_, err = s.GetQuestionnaire(9999)
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestQuestionCRUDWithChoices(t *testing.T) {
	s := newTestStore(t)
	qnrID := insertTestQuestionnaire(t, s, 1, "feedback")

	id, err := s.InsertQuestion(model.Question{
		QuestionnaireID: qnrID,
		Kind:            model.KindStarRating,
		Name:            "satisfaction",
		Content:         "Rate the course",
		Required:        true,
		MaxStars:        7,
		Position:        0,
		Choices: []model.Choice{
			{Content: "Lectures"},
			{Content: "Labs"},
		},
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Kind != model.KindStarRating {
		t.Errorf("kind = %q", q.Kind)
	}
	if q.MaxStars != 7 {
		t.Errorf("max_stars = %d, want 7", q.MaxStars)
	}
	if len(q.Choices) != 2 {
		t.Fatalf("got %d choices, want 2", len(q.Choices))
	}
	if q.Choices[0].Content != "Lectures" || q.Choices[0].Position != 0 {
		t.Errorf("first choice = %+v", q.Choices[0])
	}
	if q.Choices[1].Content != "Labs" || q.Choices[1].Position != 1 {
		t.Errorf("second choice = %+v", q.Choices[1])
	}

	questions, err := s.ListQuestions(qnrID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("got %d questions, want 1", len(questions))
	}

	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestUserLookups(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "alice", "S1001", model.UserRoleStudent)

	u, err := s.GetUserByUsername("alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("got %+v", u)
	}
	if u.IDNumber != "S1001" {
		t.Errorf("idnumber = %q", u.IDNumber)
	}

	u, err = s.GetUserByIDNumber("S1001")
	if err != nil {
		t.Fatalf("GetUserByIDNumber: %v", err)
	}
	if u == nil || u.Username != "alice" {
		t.Fatalf("got %+v", u)
	}

	// idnumber matching is exact and case-sensitive.
	u, err = s.GetUserByIDNumber("s1001")
	if err != nil {
		t.Fatalf("GetUserByIDNumber lowercase: %v", err)
	}
	if u != nil {
		t.Errorf("case-insensitive match returned %+v", u)
	}

	u, err = s.GetUserByIDNumber("S100")
	if err != nil {
		t.Fatalf("GetUserByIDNumber prefix: %v", err)
	}
	if u != nil {
		t.Errorf("prefix match returned %+v", u)
	}

	u, err = s.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u == nil || u.Username != "alice" {
		t.Fatalf("got %+v", u)
	}

	u, err = s.GetUserByID(9999)
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if u != nil {
		t.Errorf("missing user returned %+v", u)
	}
}

func TestEnrolment(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "alice", "S1001", model.UserRoleStudent)

	enrolled, err := s.IsEnrolled(1, id)
	if err != nil {
		t.Fatalf("IsEnrolled: %v", err)
	}
	if enrolled {
		t.Error("not yet enrolled")
	}

	if err := s.Enrol(1, id); err != nil {
		t.Fatalf("Enrol: %v", err)
	}
	// Enrolling twice is a no-op.
	if err := s.Enrol(1, id); err != nil {
		t.Fatalf("Enrol twice: %v", err)
	}

	enrolled, err = s.IsEnrolled(1, id)
	if err != nil {
		t.Fatalf("IsEnrolled: %v", err)
	}
	if !enrolled {
		t.Error("expected enrolled")
	}

	// Enrolment is per course.
	enrolled, err = s.IsEnrolled(2, id)
	if err != nil {
		t.Fatalf("IsEnrolled other course: %v", err)
	}
	if enrolled {
		t.Error("enrolled in the wrong course")
	}

	if err := s.Unenrol(1, id); err != nil {
		t.Fatalf("Unenrol: %v", err)
	}
	enrolled, err = s.IsEnrolled(1, id)
	if err != nil {
		t.Fatalf("IsEnrolled after Unenrol: %v", err)
	}
	if enrolled {
		t.Error("still enrolled after Unenrol")
	}
}

func TestSaveAnswerUpsert(t *testing.T) {
	s := newTestStore(t)
	qnrID := insertTestQuestionnaire(t, s, 1, "feedback")
	userID := insertTestUser(t, s, "alice", "S1001", model.UserRoleStudent)

	resp, err := s.GetResponse(qnrID, userID)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response, got %+v", resp)
	}

	if err := s.SaveAnswer(qnrID, userID, 10, 100, 3); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.SaveAnswer(qnrID, userID, 10, 101, 5); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	resp, err = s.GetResponse(qnrID, userID)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Value(10, 100) != 3 || resp.Value(10, 101) != 5 {
		t.Errorf("answers = %v", resp.Answers)
	}

	// Saving again overwrites the value without growing the answer set.
	if err := s.SaveAnswer(qnrID, userID, 10, 100, 1); err != nil {
		t.Fatalf("SaveAnswer overwrite: %v", err)
	}
	resp, err = s.GetResponse(qnrID, userID)
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp.Value(10, 100) != 1 {
		t.Errorf("overwritten value = %d, want 1", resp.Value(10, 100))
	}
	if len(resp.Answers[10]) != 2 {
		t.Errorf("answer set grew to %d entries", len(resp.Answers[10]))
	}

	responses, err := s.ListResponses(qnrID)
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	if len(responses) != 1 {
		t.Errorf("got %d responses, want 1", len(responses))
	}
}

func TestPersonalFileStore(t *testing.T) {
	s := newTestStore(t)
	qnrA := insertTestQuestionnaire(t, s, 1, "feedback A")
	qnrB := insertTestQuestionnaire(t, s, 1, "feedback B")
	bob := insertTestUser(t, s, "bob", "S1002", model.UserRoleStudent)
	alice := insertTestUser(t, s, "alice", "S1001", model.UserRoleStudent)

	bobFile, err := s.CreatePersonalFile(model.PersonalFile{
		QuestionnaireID: qnrA, UserID: bob, IDNumber: "S1002",
		Filename: "S1002.png", FileArea: "personalfile",
	})
	if err != nil {
		t.Fatalf("CreatePersonalFile: %v", err)
	}
	aliceFile, err := s.CreatePersonalFile(model.PersonalFile{
		QuestionnaireID: qnrA, UserID: alice, IDNumber: "S1001",
		Filename: "S1001.jpg", FileArea: "personalfile",
	})
	if err != nil {
		t.Fatalf("CreatePersonalFile: %v", err)
	}

	// One record per (questionnaire, user).
	_, err = s.CreatePersonalFile(model.PersonalFile{
		QuestionnaireID: qnrA, UserID: alice, IDNumber: "S1001",
		Filename: "dup.jpg", FileArea: "personalfile",
	})
	if err == nil {
		t.Error("duplicate (questionnaire, user) record accepted")
	}

	// Same user may have a record in another questionnaire.
	if _, err := s.CreatePersonalFile(model.PersonalFile{
		QuestionnaireID: qnrB, UserID: alice, IDNumber: "S1001",
		Filename: "S1001.jpg", FileArea: "personalfile",
	}); err != nil {
		t.Fatalf("CreatePersonalFile other questionnaire: %v", err)
	}

	// Listing is ordered by idnumber, not insertion order.
	list, err := s.ListPersonalFiles(qnrA)
	if err != nil {
		t.Fatalf("ListPersonalFiles: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d records, want 2", len(list))
	}
	if list[0].IDNumber != "S1001" || list[1].IDNumber != "S1002" {
		t.Errorf("order = %q, %q", list[0].IDNumber, list[1].IDNumber)
	}

	// Lookup by id is scoped to the questionnaire.
	got, err := s.GetPersonalFileByID(bobFile, qnrA)
	if err != nil {
		t.Fatalf("GetPersonalFileByID: %v", err)
	}
	if got == nil || got.Filename != "S1002.png" {
		t.Fatalf("got %+v", got)
	}
	got, err = s.GetPersonalFileByID(bobFile, qnrB)
	if err != nil {
		t.Fatalf("GetPersonalFileByID wrong scope: %v", err)
	}
	if got != nil {
		t.Errorf("out-of-scope lookup returned %+v", got)
	}

	// Delete under the wrong questionnaire touches nothing.
	deleted, err := s.DeletePersonalFile(bobFile, qnrB)
	if err != nil {
		t.Fatalf("DeletePersonalFile wrong scope: %v", err)
	}
	if deleted {
		t.Error("out-of-scope delete reported success")
	}
	deleted, err = s.DeletePersonalFile(bobFile, qnrA)
	if err != nil {
		t.Fatalf("DeletePersonalFile: %v", err)
	}
	if !deleted {
		t.Error("in-scope delete reported no-op")
	}

	list, err = s.ListPersonalFiles(qnrA)
	if err != nil {
		t.Fatalf("ListPersonalFiles: %v", err)
	}
	if len(list) != 1 || list[0].ID != aliceFile {
		t.Errorf("remaining records = %+v", list)
	}
}

func TestMetadataAndImportHash(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("missing key = %q", v)
	}

	if err := s.SetMetadata("k", "v1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("k", "v2"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	v, err = s.GetMetadata("k")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "v2" {
		t.Errorf("got %q, want v2", v)
	}

	if err := s.SetImportedFileHash("defs.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	h, err := s.GetImportedFileHash("defs.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if h != "abc123" {
		t.Errorf("hash = %q", h)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "teacher", "", model.UserRoleTeacher)

	token, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if token == "" {
		t.Fatal("empty session token")
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != userID {
		t.Fatalf("got %+v", sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession after delete: %v", err)
	}
	if sess != nil {
		t.Error("session survived deletion")
	}

	// Revoking by user removes every session at once.
	t1, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	t2, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if err := s.DeleteUserSessions(userID); err != nil {
		t.Fatalf("DeleteUserSessions: %v", err)
	}
	for _, tok := range []string{t1, t2} {
		sess, err := s.GetAuthSession(tok)
		if err != nil {
			t.Fatalf("GetAuthSession: %v", err)
		}
		if sess != nil {
			t.Error("session survived per-user revocation")
		}
	}
}
