package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type Student struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type GroupType string

const (
	GroupRegular GroupType = "regular"
	GroupNominal GroupType = "nominal"
)

type Group struct {
	ID      int64     `json:"id"`
	Type    GroupType `json:"type"`
	Name    string    `json:"name"`
	Members []Student `json:"members"`
}

type Session struct {
	ID          int64     `json:"id"`
	Groups      []Group   `json:"groups"`
	Duration    int       `json:"duration"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	LetterPairs []string  `json:"letterPairs"`
	Completed   bool      `json:"completed"`
}

// Submission maps a letter pair to the names entered for it, in entry order.
type Submission map[string][]string

// ManualOverride is a lecturer-issued verdict for one literal name string.
// Overrides are exact-keyed on purpose: submissions are fuzzy-matched
// against the oracle, lecturer verdicts are not.
type ManualOverride struct {
	Valid      bool      `json:"valid"`
	Reason     string    `json:"reason"`
	Lecturer   bool      `json:"manuallyVerified"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

func (o ManualOverride) verification() Verification {
	status := StatusInvalid
	if o.Valid {
		status = StatusValid
	}
	return Verification{
		Status:   status,
		Reason:   o.Reason,
		Lecturer: true,
	}
}

var (
	errNameRequired     = errors.New("name is required")
	errNameTaken        = errors.New("name already exists")
	errGroupTooSmall    = errors.New("not enough group members")
	errBadGroupType     = errors.New("group type must be regular or nominal")
	errNoGroups         = errors.New("no groups to start")
	errSessionNotFound  = errors.New("session not found")
	errAlreadySubmitted = errors.New("another group member already submitted")
)

// Store holds all game state. Everything lives in process memory; Reset
// rebuilds it from empty. Mutations happen only through discrete actions,
// never mid-aggregation.
type Store struct {
	mu            sync.RWMutex
	students      []Student
	groups        []Group
	sessions      map[int64]*Session
	groupSubs     map[int64]Submission
	studentSubs   map[int]Submission
	submitters    map[int64]int
	activeMembers map[int64]int
	overrides     map[string]ManualOverride
	allCompleted  bool
}

func newStore() *Store {
	return &Store{
		sessions:      make(map[int64]*Session),
		groupSubs:     make(map[int64]Submission),
		studentSubs:   make(map[int]Submission),
		submitters:    make(map[int64]int),
		activeMembers: make(map[int64]int),
		overrides:     make(map[string]ManualOverride),
	}
}

// Reset wipes every table back to the initial empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.students = nil
	s.groups = nil
	s.sessions = make(map[int64]*Session)
	s.groupSubs = make(map[int64]Submission)
	s.studentSubs = make(map[int]Submission)
	s.submitters = make(map[int64]int)
	s.activeMembers = make(map[int64]int)
	s.overrides = make(map[string]ManualOverride)
	s.allCompleted = false
}

func (s *Store) RegisterStudent(name string, skipDuplicateCheck bool) (Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Student{}, errNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !skipDuplicateCheck {
		for _, existing := range s.students {
			if strings.EqualFold(existing.Name, name) {
				return Student{}, errNameTaken
			}
		}
	}

	id := 1
	for _, existing := range s.students {
		if existing.ID >= id {
			id = existing.ID + 1
		}
	}

	student := Student{
		ID:           id,
		Name:         name,
		RegisteredAt: time.Now(),
	}
	s.students = append(s.students, student)

	return student, nil
}

func (s *Store) Students() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Student, len(s.students))
	copy(out, s.students)
	return out
}

func (s *Store) DeleteStudent(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.students[:0]
	for _, student := range s.students {
		if student.ID == id {
			continue
		}
		dst = append(dst, student)
	}
	s.students = dst
}

func (s *Store) CreateGroup(gtype GroupType, memberIDs []int, minSize int) (Group, error) {
	if gtype != GroupRegular && gtype != GroupNominal {
		return Group{}, errBadGroupType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int]bool, len(memberIDs))
	for _, id := range memberIDs {
		wanted[id] = true
	}

	var members []Student
	for _, student := range s.students {
		if wanted[student.ID] {
			members = append(members, student)
		}
	}

	if len(members) < minSize {
		return Group{}, errGroupTooSmall
	}

	group := Group{
		ID:      time.Now().UnixMilli(),
		Type:    gtype,
		Name:    fmt.Sprintf("%s group %d", gtype, len(s.groups)+1),
		Members: members,
	}
	s.groups = append(s.groups, group)

	return group, nil
}

func (s *Store) Groups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Group, len(s.groups))
	copy(out, s.groups)
	return out
}

func (s *Store) DeleteGroup(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.groups[:0]
	for _, group := range s.groups {
		if group.ID == id {
			continue
		}
		dst = append(dst, group)
	}
	s.groups = dst
}

// StartSession opens a timed round for the given groups (all groups when
// groupIDs is empty) with the full letter-pair set attached.
func (s *Store) StartSession(duration int, groupIDs []int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionGroups := s.groups
	if len(groupIDs) > 0 {
		wanted := make(map[int64]bool, len(groupIDs))
		for _, id := range groupIDs {
			wanted[id] = true
		}
		sessionGroups = nil
		for _, group := range s.groups {
			if wanted[group.ID] {
				sessionGroups = append(sessionGroups, group)
			}
		}
	}

	if len(sessionGroups) == 0 {
		return Session{}, errNoGroups
	}

	now := time.Now()
	session := &Session{
		ID:          now.UnixMilli(),
		Groups:      append([]Group(nil), sessionGroups...),
		Duration:    duration,
		StartTime:   now,
		EndTime:     now.Add(time.Duration(duration) * time.Second),
		LetterPairs: letterPairs,
	}
	s.sessions[session.ID] = session
	s.allCompleted = false

	return *session, nil
}

func (s *Store) EndSession(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return errSessionNotFound
	}
	session.Completed = true
	return nil
}

func (s *Store) Session(id int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

func (s *Store) ActiveSessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if !session.Completed {
			out = append(out, *session)
		}
	}
	return out
}

func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	return out
}

// MarkAllCompleted flags that every session has been closed out and results
// may be published.
func (s *Store) MarkAllCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allCompleted = true
}

// SubmitAnswers records a submission. A group ID marks a regular-group
// shared submission: the first submitting student claims the slot, and
// later attempts by other members fail with the claimant's ID.
func (s *Store) SubmitAnswers(studentID int, groupID int64, answers Submission) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if groupID != 0 {
		if claimed, ok := s.submitters[groupID]; ok && claimed != studentID {
			return claimed, errAlreadySubmitted
		}
		s.submitters[groupID] = studentID
		s.groupSubs[groupID] = answers
		return studentID, nil
	}

	s.studentSubs[studentID] = answers
	return studentID, nil
}

// CanSubmit reports whether a student may submit for a regular group. The
// first member to ask becomes the group's active member and keeps the slot.
func (s *Store) CanSubmit(groupID int64, studentID int) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, ok := s.activeMembers[groupID]
	if !ok {
		s.activeMembers[groupID] = studentID
		return true, s.studentNameLocked(studentID)
	}

	if active == studentID {
		return true, s.studentNameLocked(studentID)
	}

	return false, s.studentNameLocked(active)
}

func (s *Store) studentNameLocked(id int) string {
	for _, student := range s.students {
		if student.ID == id {
			return student.Name
		}
	}
	return ""
}

func (s *Store) SetOverride(name string, valid bool) (ManualOverride, error) {
	if name == "" {
		return ManualOverride{}, errNameRequired
	}

	reason := "approved by lecturer"
	if !valid {
		reason = "rejected by lecturer"
	}

	override := ManualOverride{
		Valid:      valid,
		Reason:     reason,
		Lecturer:   true,
		VerifiedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[name] = override

	return override, nil
}

func (s *Store) ClearOverride(name string) error {
	if name == "" {
		return errNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, name)

	return nil
}

func (s *Store) Override(name string) (ManualOverride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	override, ok := s.overrides[name]
	return override, ok
}

// aggregateInput is a point-in-time copy of everything the aggregation
// engine reads, taken up front so the long verification pass never holds
// the store lock.
type aggregateInput struct {
	groups      []Group
	groupSubs   map[int64]Submission
	studentSubs map[int]Submission
	submitters  map[int64]int
	students    map[int]Student
	overrides   map[string]ManualOverride
}

func (s *Store) aggregationView() aggregateInput {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in := aggregateInput{
		groups:      make([]Group, len(s.groups)),
		groupSubs:   make(map[int64]Submission, len(s.groupSubs)),
		studentSubs: make(map[int]Submission, len(s.studentSubs)),
		submitters:  make(map[int64]int, len(s.submitters)),
		students:    make(map[int]Student, len(s.students)),
		overrides:   make(map[string]ManualOverride, len(s.overrides)),
	}

	copy(in.groups, s.groups)
	for id, sub := range s.groupSubs {
		in.groupSubs[id] = sub
	}
	for id, sub := range s.studentSubs {
		in.studentSubs[id] = sub
	}
	for id, student := range s.submitters {
		in.submitters[id] = student
	}
	for _, student := range s.students {
		in.students[student.ID] = student
	}
	for name, override := range s.overrides {
		in.overrides[name] = override
	}

	return in
}
