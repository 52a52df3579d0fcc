package storage

import (
	"database/sql"
	"encoding/json"

	"lender-reconciliation-engine/internal/models"
	"lender-reconciliation-engine/internal/patterns"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

var _ patterns.Store = (*Store)(nil)

const patternColumns = `id, keywords, amount_min, amount_max, direction, classification,
	target_entity_id, expense_type, confidence, match_count,
	split_principal, split_interest, split_fees, created_at, updated_at`

func scanPattern(row interface{ Scan(...interface{}) error }) (*models.Pattern, error) {
	var p models.Pattern
	var keywords, amountMin, amountMax, direction, createdAt, updatedAt string
	err := row.Scan(&p.ID, &keywords, &amountMin, &amountMax, &direction, &p.Classification,
		&p.TargetEntityID, &p.ExpenseType, &p.Confidence, &p.MatchCount,
		&p.SplitPrincipal, &p.SplitInterest, &p.SplitFees, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
			return nil, err
		}
	}
	p.Direction = models.Direction(direction)
	if p.AmountMin, err = decodeDecimal(amountMin); err != nil {
		return nil, err
	}
	if p.AmountMax, err = decodeDecimal(amountMax); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// All returns every stored pattern sorted by id. Implements patterns.Store.
func (s *Store) All() ([]*models.Pattern, error) {
	rows, err := s.db.Query(`SELECT ` + patternColumns + ` FROM patterns ORDER BY id`)
	if err != nil {
		return nil, apperrors.PatternError(apperrors.CodePatternLoad, "load patterns", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, apperrors.PatternError(apperrors.CodePatternLoad, "scan pattern", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns one pattern by id.
func (s *Store) Get(id string) (*models.Pattern, error) {
	row := s.db.QueryRow(`SELECT `+patternColumns+` FROM patterns WHERE id = ?`, id)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.CategoryPattern, apperrors.CodePatternLoad, "pattern not found: "+id)
	}
	if err != nil {
		return nil, apperrors.PatternError(apperrors.CodePatternLoad, "get pattern", err)
	}
	return p, nil
}

// Save inserts or replaces a pattern.
func (s *Store) Save(p *models.Pattern) error {
	if p == nil || p.ID == "" {
		return apperrors.New(apperrors.CategoryPattern, apperrors.CodePatternSave, "pattern must have an id")
	}

	keywords, err := json.Marshal(p.Keywords)
	if err != nil {
		return apperrors.PatternError(apperrors.CodePatternSave, "encode keywords", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO patterns
		(id, keywords, amount_min, amount_max, direction, classification,
		 target_entity_id, expense_type, confidence, match_count,
		 split_principal, split_interest, split_fees, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, string(keywords), p.AmountMin.String(), p.AmountMax.String(),
		string(p.Direction), p.Classification, p.TargetEntityID, p.ExpenseType,
		p.Confidence, p.MatchCount, p.SplitPrincipal, p.SplitInterest, p.SplitFees,
		encodeTime(p.CreatedAt), encodeTime(p.UpdatedAt))
	if err != nil {
		return apperrors.PatternError(apperrors.CodePatternSave, "save pattern", err)
	}
	return nil
}

// Delete removes a pattern; deleting an absent id is a no-op.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM patterns WHERE id = ?`, id); err != nil {
		return apperrors.PatternError(apperrors.CodePatternSave, "delete pattern", err)
	}
	return nil
}
