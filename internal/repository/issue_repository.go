package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/models"
)

const issueColumns = `id, tracker_id, project_id, status_id, assigned_to_id, author_id, parent_id, subject,
	COALESCE(description, '') AS description, priority_id, category_id, fixed_version_id, start_date, due_date,
	estimated_hours, done_ratio, is_private, lock_version, updated_on`

const relationColumns = "id, issue_from_id, issue_to_id, relation_type, delay, reverse_id"

// SQLIssueRepository stores issues, their custom values, relations and journals.
type SQLIssueRepository struct {
	db *database.DB
}

func NewIssueRepository(db *database.DB) *SQLIssueRepository {
	return &SQLIssueRepository{db: db}
}

func (r *SQLIssueRepository) GetByID(ctx context.Context, id int) (*models.Issue, error) {
	return loadIssue(ctx, r.db, id, "")
}

func (r *SQLIssueRepository) Relations(ctx context.Context, issueID int) ([]models.IssueRelation, error) {
	var rels []models.IssueRelation
	err := r.db.SelectContext(ctx, &rels,
		r.db.Rebind("SELECT "+relationColumns+" FROM issue_relations WHERE issue_from_id = ? ORDER BY id"), issueID)
	if err != nil {
		return nil, fmt.Errorf("relations of issue %d: %w", issueID, err)
	}
	return rels, nil
}

func (r *SQLIssueRepository) GetRelation(ctx context.Context, id int) (*models.IssueRelation, error) {
	return getRelation(ctx, r.db, id)
}

func (r *SQLIssueRepository) Journals(ctx context.Context, issueID int) ([]models.Journal, error) {
	var journals []models.Journal
	err := r.db.SelectContext(ctx, &journals, r.db.Rebind(`SELECT id, journalized_id, user_id,
		COALESCE(notes, '') AS notes, created_on FROM journals
		WHERE journalized_id = ? AND journalized_type = 'Issue' ORDER BY id`), issueID)
	if err != nil {
		return nil, fmt.Errorf("journals of issue %d: %w", issueID, err)
	}
	if len(journals) == 0 {
		return nil, nil
	}

	ids := make([]int, len(journals))
	for i := range journals {
		ids[i] = journals[i].ID
	}
	query, args, err := sqlx.In(`SELECT id, journal_id, property, prop_key, COALESCE(old_value, '') AS old_value,
		COALESCE(value, '') AS value FROM journal_details WHERE journal_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	var details []models.JournalDetail
	if err := r.db.SelectContext(ctx, &details, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("journal details: %w", err)
	}
	byJournal := make(map[int][]models.JournalDetail, len(journals))
	for _, d := range details {
		byJournal[d.JournalID] = append(byJournal[d.JournalID], d)
	}
	for i := range journals {
		journals[i].Details = byJournal[journals[i].ID]
	}
	return journals, nil
}

func (r *SQLIssueRepository) RunInTx(ctx context.Context, fn func(tx IssueTx) error) error {
	return r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&sqlIssueTx{tx: tx, driver: r.db.Driver})
	})
}

// loadIssue reads an issue and its custom values. lock is appended to the
// issue SELECT and is either empty or the driver's row locking clause.
func loadIssue(ctx context.Context, q sqlx.ExtContext, id int, lock string) (*models.Issue, error) {
	var issue models.Issue
	err := sqlx.GetContext(ctx, q, &issue, q.Rebind("SELECT "+issueColumns+" FROM issues WHERE id = ?"+lock), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, database.Classify(fmt.Errorf("get issue %d: %w", id, err))
	}

	var values []struct {
		FieldID int    `db:"custom_field_id"`
		Value   string `db:"value"`
	}
	err = sqlx.SelectContext(ctx, q, &values, q.Rebind(
		"SELECT custom_field_id, COALESCE(value, '') AS value FROM custom_values WHERE customized_id = ? ORDER BY custom_field_id"), id)
	if err != nil {
		return nil, fmt.Errorf("custom values of issue %d: %w", id, err)
	}
	if len(values) > 0 {
		issue.CustomFields = make(map[string]string, len(values))
		for _, v := range values {
			issue.CustomFields[strconv.Itoa(v.FieldID)] = v.Value
		}
	}
	return &issue, nil
}

func getRelation(ctx context.Context, q sqlx.ExtContext, id int) (*models.IssueRelation, error) {
	var rel models.IssueRelation
	err := sqlx.GetContext(ctx, q, &rel, q.Rebind("SELECT "+relationColumns+" FROM issue_relations WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relation %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation %d: %w", id, err)
	}
	return &rel, nil
}

type sqlIssueTx struct {
	tx     *sqlx.Tx
	driver database.Driver
}

func (t *sqlIssueTx) LockIssue(ctx context.Context, id int) (*models.Issue, error) {
	return loadIssue(ctx, t.tx, id, t.driver.ForUpdate())
}

func (t *sqlIssueTx) UpdateIssue(ctx context.Context, issue *models.Issue, expectedLockVersion int) error {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE issues SET status_id = ?, assigned_to_id = ?, parent_id = ?,
		subject = ?, description = ?, priority_id = ?, category_id = ?, fixed_version_id = ?, start_date = ?,
		due_date = ?, estimated_hours = ?, done_ratio = ?, is_private = ?, lock_version = lock_version + 1,
		updated_on = ? WHERE id = ? AND lock_version = ?`),
		issue.StatusID, issue.AssignedToID, issue.ParentID, issue.Subject, issue.Description, issue.PriorityID,
		issue.CategoryID, issue.FixedVersionID, issue.StartDate, issue.DueDate, issue.EstimatedHours,
		issue.DoneRatio, issue.IsPrivate, now, issue.ID, expectedLockVersion)
	if err != nil {
		return database.Classify(fmt.Errorf("update issue %d: %w", issue.ID, err))
	}
	if err := expectRow(res, fmt.Errorf("issue %d: %w", issue.ID, core.ErrConcurrentModification)); err != nil {
		return err
	}

	fields := make([]string, 0, len(issue.CustomFields))
	for k := range issue.CustomFields {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		if err := t.upsertCustomValue(ctx, issue.ID, k, issue.CustomFields[k]); err != nil {
			return err
		}
	}

	issue.LockVersion = expectedLockVersion + 1
	issue.UpdatedOn = now
	return nil
}

func (t *sqlIssueTx) upsertCustomValue(ctx context.Context, issueID int, field, value string) error {
	fieldID, err := strconv.Atoi(field)
	if err != nil {
		return core.NewFieldError(field, core.ErrUnknownField)
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(
		"UPDATE custom_values SET value = ? WHERE customized_id = ? AND custom_field_id = ?"), value, issueID, fieldID)
	if err != nil {
		return fmt.Errorf("update custom value %d: %w", fieldID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(
		"INSERT INTO custom_values (customized_id, custom_field_id, value) VALUES (?, ?, ?)"), issueID, fieldID, value); err != nil {
		return fmt.Errorf("insert custom value %d: %w", fieldID, err)
	}
	return nil
}

func (t *sqlIssueTx) AddJournal(ctx context.Context, journal *models.Journal) error {
	if journal.CreatedOn.IsZero() {
		journal.CreatedOn = time.Now().UTC()
	}
	id, err := database.InsertID(ctx, t.tx, t.driver,
		"INSERT INTO journals (journalized_id, journalized_type, user_id, notes, created_on) VALUES (?, 'Issue', ?, ?, ?)",
		journal.IssueID, journal.UserID, journal.Notes, journal.CreatedOn)
	if err != nil {
		return fmt.Errorf("insert journal for issue %d: %w", journal.IssueID, err)
	}
	journal.ID = id

	for i := range journal.Details {
		d := &journal.Details[i]
		d.JournalID = id
		detailID, err := database.InsertID(ctx, t.tx, t.driver,
			"INSERT INTO journal_details (journal_id, property, prop_key, old_value, value) VALUES (?, ?, ?, ?, ?)",
			id, d.Property, d.PropKey, d.OldValue, d.Value)
		if err != nil {
			return fmt.Errorf("insert journal detail %s: %w", d.PropKey, err)
		}
		d.ID = detailID
	}
	return nil
}

func (t *sqlIssueTx) GetRelation(ctx context.Context, id int) (*models.IssueRelation, error) {
	return getRelation(ctx, t.tx, id)
}

func (t *sqlIssueTx) RelationsBetween(ctx context.Context, a, b int) ([]models.IssueRelation, error) {
	var rels []models.IssueRelation
	err := t.tx.SelectContext(ctx, &rels, t.tx.Rebind("SELECT "+relationColumns+` FROM issue_relations
		WHERE (issue_from_id = ? AND issue_to_id = ?) OR (issue_from_id = ? AND issue_to_id = ?) ORDER BY id`),
		a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("relations between %d and %d: %w", a, b, err)
	}
	return rels, nil
}

func (t *sqlIssueTx) PrecedenceEdges(ctx context.Context, issueIDs []int) ([]models.IssueRelation, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+relationColumns+` FROM issue_relations
		WHERE relation_type IN (?) AND (issue_from_id IN (?) OR issue_to_id IN (?)) ORDER BY id`,
		[]string{string(models.RelationPrecedes), string(models.RelationFollows)}, issueIDs, issueIDs)
	if err != nil {
		return nil, err
	}
	var rels []models.IssueRelation
	if err := t.tx.SelectContext(ctx, &rels, t.tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("precedence edges: %w", err)
	}
	return rels, nil
}

func (t *sqlIssueTx) InsertRelation(ctx context.Context, rel *models.IssueRelation) error {
	id, err := database.InsertID(ctx, t.tx, t.driver,
		"INSERT INTO issue_relations (issue_from_id, issue_to_id, relation_type, delay, reverse_id) VALUES (?, ?, ?, ?, ?)",
		rel.IssueFromID, rel.IssueToID, string(rel.RelationType), rel.Delay, rel.ReverseID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("relation %d -> %d: %w", rel.IssueFromID, rel.IssueToID, core.ErrDuplicateRelation)
		}
		return database.Classify(fmt.Errorf("insert relation: %w", err))
	}
	rel.ID = id
	return nil
}

func (t *sqlIssueTx) SetReverse(ctx context.Context, relationID, reverseID int) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind("UPDATE issue_relations SET reverse_id = ? WHERE id = ?"), reverseID, relationID)
	if err != nil {
		return fmt.Errorf("link relation %d: %w", relationID, err)
	}
	return expectRow(res, fmt.Errorf("relation %d: %w", relationID, core.ErrNotFound))
}

func (t *sqlIssueTx) DeleteRelation(ctx context.Context, id int) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind("DELETE FROM issue_relations WHERE id = ?"), id)
	if err != nil {
		return database.Classify(fmt.Errorf("delete relation %d: %w", id, err))
	}
	return expectRow(res, fmt.Errorf("relation %d: %w", id, core.ErrNotFound))
}
