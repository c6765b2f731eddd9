package models

// RelationType names the kind of link between two issues.
type RelationType string

const (
	RelationRelates    RelationType = "relates"
	RelationDuplicates RelationType = "duplicates"
	RelationDuplicated RelationType = "duplicated"
	RelationBlocks     RelationType = "blocks"
	RelationBlocked    RelationType = "blocked"
	RelationPrecedes   RelationType = "precedes"
	RelationFollows    RelationType = "follows"
	RelationCopiedTo   RelationType = "copied_to"
	RelationCopiedFrom RelationType = "copied_from"
)

var relationReverse = map[RelationType]RelationType{
	RelationRelates:    "",
	RelationDuplicates: RelationDuplicated,
	RelationDuplicated: RelationDuplicates,
	RelationBlocks:     RelationBlocked,
	RelationBlocked:    RelationBlocks,
	RelationPrecedes:   RelationFollows,
	RelationFollows:    RelationPrecedes,
	RelationCopiedTo:   RelationCopiedFrom,
	RelationCopiedFrom: RelationCopiedTo,
}

func (t RelationType) Valid() bool {
	_, ok := relationReverse[t]
	return ok
}

// Reverse returns the type of the paired inverse row, or "" for relates.
func (t RelationType) Reverse() RelationType {
	return relationReverse[t]
}

// IsSymmetric reports whether creating a relation of this type also creates
// an inverse row on the other issue.
func (t RelationType) IsSymmetric() bool {
	return t.Reverse() != ""
}

// IsPrecedence reports whether the type takes part in scheduling.
func (t RelationType) IsPrecedence() bool {
	return t == RelationPrecedes || t == RelationFollows
}

// IssueRelation is one stored relation row. ReverseID points at the paired
// inverse row for symmetric types.
type IssueRelation struct {
	ID           int          `json:"id" db:"id"`
	IssueFromID  int          `json:"issue_id" db:"issue_from_id"`
	IssueToID    int          `json:"issue_to_id" db:"issue_to_id"`
	RelationType RelationType `json:"relation_type" db:"relation_type"`
	Delay        *int         `json:"delay,omitempty" db:"delay"`
	ReverseID    *int         `json:"reverse_id,omitempty" db:"reverse_id"`
}

// Predecessor returns the issue that must finish first for a precedence row.
func (r *IssueRelation) Predecessor() int {
	if r.RelationType == RelationFollows {
		return r.IssueToID
	}
	return r.IssueFromID
}

// Successor is the counterpart of Predecessor.
func (r *IssueRelation) Successor() int {
	if r.RelationType == RelationFollows {
		return r.IssueFromID
	}
	return r.IssueToID
}
