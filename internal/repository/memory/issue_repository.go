package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// IssueRepository keeps issues, relations and journals in memory. Transactions
// are serialized and work on a copy of the state that replaces the live state
// on commit.
type IssueRepository struct {
	state *issueState
	mu    sync.RWMutex
	txMu  sync.Mutex
}

type issueState struct {
	issues         map[int]*models.Issue
	relations      map[int]*models.IssueRelation
	journals       []models.Journal
	nextRelationID int
	nextJournalID  int
	nextDetailID   int
}

func NewIssueRepository() *IssueRepository {
	return &IssueRepository{state: &issueState{
		issues:         make(map[int]*models.Issue),
		relations:      make(map[int]*models.IssueRelation),
		nextRelationID: 1,
		nextJournalID:  1,
		nextDetailID:   1,
	}}
}

// AddIssue stores a copy of issue.
func (r *IssueRepository) AddIssue(issue *models.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.issues[issue.ID] = issue.Clone()
}

func (r *IssueRepository) GetByID(ctx context.Context, id int) (*models.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, ok := r.state.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %d: %w", id, core.ErrNotFound)
	}
	return issue.Clone(), nil
}

func (r *IssueRepository) Relations(ctx context.Context, issueID int) ([]models.IssueRelation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.IssueRelation
	for _, rel := range r.state.relations {
		if rel.IssueFromID == issueID {
			out = append(out, *rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *IssueRepository) GetRelation(ctx context.Context, id int) (*models.IssueRelation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state.relation(id)
}

func (r *IssueRepository) Journals(ctx context.Context, issueID int) ([]models.Journal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Journal
	for _, j := range r.state.journals {
		if j.IssueID == issueID {
			j.Details = append([]models.JournalDetail(nil), j.Details...)
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *IssueRepository) RunInTx(ctx context.Context, fn func(tx repository.IssueTx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	work := r.state.clone()
	r.mu.RUnlock()

	if err := fn(&issueTx{s: work}); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = work
	r.mu.Unlock()
	return nil
}

func (s *issueState) clone() *issueState {
	c := *s
	c.issues = make(map[int]*models.Issue, len(s.issues))
	for id, issue := range s.issues {
		c.issues[id] = issue.Clone()
	}
	c.relations = make(map[int]*models.IssueRelation, len(s.relations))
	for id, rel := range s.relations {
		cp := *rel
		c.relations[id] = &cp
	}
	c.journals = append([]models.Journal(nil), s.journals...)
	return &c
}

func (s *issueState) relation(id int) (*models.IssueRelation, error) {
	rel, ok := s.relations[id]
	if !ok {
		return nil, fmt.Errorf("relation %d: %w", id, core.ErrNotFound)
	}
	cp := *rel
	return &cp, nil
}

type issueTx struct {
	s *issueState
}

func (t *issueTx) LockIssue(ctx context.Context, id int) (*models.Issue, error) {
	issue, ok := t.s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %d: %w", id, core.ErrNotFound)
	}
	return issue.Clone(), nil
}

func (t *issueTx) UpdateIssue(ctx context.Context, issue *models.Issue, expectedLockVersion int) error {
	stored, ok := t.s.issues[issue.ID]
	if !ok {
		return fmt.Errorf("issue %d: %w", issue.ID, core.ErrNotFound)
	}
	if stored.LockVersion != expectedLockVersion {
		return fmt.Errorf("issue %d: %w", issue.ID, core.ErrConcurrentModification)
	}
	issue.LockVersion = expectedLockVersion + 1
	issue.UpdatedOn = time.Now()
	t.s.issues[issue.ID] = issue.Clone()
	return nil
}

func (t *issueTx) AddJournal(ctx context.Context, journal *models.Journal) error {
	journal.ID = t.s.nextJournalID
	t.s.nextJournalID++
	if journal.CreatedOn.IsZero() {
		journal.CreatedOn = time.Now()
	}
	for i := range journal.Details {
		journal.Details[i].ID = t.s.nextDetailID
		journal.Details[i].JournalID = journal.ID
		t.s.nextDetailID++
	}
	j := *journal
	j.Details = append([]models.JournalDetail(nil), journal.Details...)
	t.s.journals = append(t.s.journals, j)
	return nil
}

func (t *issueTx) GetRelation(ctx context.Context, id int) (*models.IssueRelation, error) {
	return t.s.relation(id)
}

func (t *issueTx) RelationsBetween(ctx context.Context, a, b int) ([]models.IssueRelation, error) {
	var out []models.IssueRelation
	for _, rel := range t.s.relations {
		if (rel.IssueFromID == a && rel.IssueToID == b) || (rel.IssueFromID == b && rel.IssueToID == a) {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (t *issueTx) PrecedenceEdges(ctx context.Context, issueIDs []int) ([]models.IssueRelation, error) {
	want := make(map[int]struct{}, len(issueIDs))
	for _, id := range issueIDs {
		want[id] = struct{}{}
	}
	var out []models.IssueRelation
	for _, rel := range t.s.relations {
		if !rel.RelationType.IsPrecedence() {
			continue
		}
		_, from := want[rel.IssueFromID]
		_, to := want[rel.IssueToID]
		if from || to {
			out = append(out, *rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *issueTx) InsertRelation(ctx context.Context, rel *models.IssueRelation) error {
	if _, ok := t.s.issues[rel.IssueFromID]; !ok {
		return fmt.Errorf("issue %d: %w", rel.IssueFromID, core.ErrNotFound)
	}
	if _, ok := t.s.issues[rel.IssueToID]; !ok {
		return fmt.Errorf("issue %d: %w", rel.IssueToID, core.ErrNotFound)
	}
	rel.ID = t.s.nextRelationID
	t.s.nextRelationID++
	cp := *rel
	t.s.relations[rel.ID] = &cp
	return nil
}

func (t *issueTx) SetReverse(ctx context.Context, relationID, reverseID int) error {
	rel, ok := t.s.relations[relationID]
	if !ok {
		return fmt.Errorf("relation %d: %w", relationID, core.ErrNotFound)
	}
	rel.ReverseID = &reverseID
	return nil
}

func (t *issueTx) DeleteRelation(ctx context.Context, id int) error {
	if _, ok := t.s.relations[id]; !ok {
		return fmt.Errorf("relation %d: %w", id, core.ErrNotFound)
	}
	delete(t.s.relations, id)
	return nil
}
