package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"blockdoc/internal/domain"
)

// DefaultHistoryLimit is the number of snapshots kept per document.
const DefaultHistoryLimit = 50

// HistoryNode is one recorded state of a document. Nodes form a tree
// through ParentID: undoing and then editing starts a new branch.
type HistoryNode struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	ParentID   *string   `json:"parentId"`
	Label      string    `json:"label"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryTree is the full history of one document as shown to the user.
type HistoryTree struct {
	Nodes     []HistoryNode `json:"nodes"`
	CurrentID string        `json:"currentId"`
	RootID    string        `json:"rootId"`
}

// HistoryStore keeps document snapshots in SQLite.
type HistoryStore struct {
	db       *DB
	maxNodes int
}

// NewHistoryStore returns a store that keeps at most maxNodes snapshots per
// document; maxNodes <= 0 means DefaultHistoryLimit.
func NewHistoryStore(db *DB, maxNodes int) *HistoryStore {
	if maxNodes <= 0 {
		maxNodes = DefaultHistoryLimit
	}
	return &HistoryStore{db: db, maxNodes: maxNodes}
}

// HasHistory reports whether any snapshot exists for the document.
func (s *HistoryStore) HasHistory(docID string) (bool, error) {
	var n int
	err := s.db.Conn().QueryRow(
		`SELECT COUNT(*) FROM history_nodes WHERE document_id = ?`, docID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count history: %w", err)
	}
	return n > 0, nil
}

// Record stores doc as a child of the current node and makes it current.
func (s *HistoryStore) Record(label string, doc *domain.Document) (*HistoryNode, error) {
	snapshot, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	var pID *string
	if cur, err := s.currentID(doc.ID); err != nil {
		return nil, err
	} else if cur != "" {
		pID = &cur
	}

	node := &HistoryNode{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		ParentID:   pID,
		Label:      label,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.Conn().Exec(
		`INSERT INTO history_nodes (id, document_id, parent_id, label, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, node.DocumentID, node.ParentID, node.Label, string(snapshot), node.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history node: %w", err)
	}

	if err := s.setCurrent(doc.ID, node.ID); err != nil {
		return nil, err
	}

	s.pruneIfNeeded(doc.ID)
	return node, nil
}

// Undo moves the current pointer to the parent node and returns its
// snapshot. ok is false when there is nothing to undo.
func (s *HistoryStore) Undo(docID string) (doc *domain.Document, ok bool, err error) {
	cur, err := s.currentID(docID)
	if err != nil || cur == "" {
		return nil, false, err
	}

	var parentID sql.NullString
	err = s.db.Conn().QueryRow(`SELECT parent_id FROM history_nodes WHERE id = ?`, cur).Scan(&parentID)
	if err != nil {
		return nil, false, fmt.Errorf("load history node: %w", err)
	}
	if !parentID.Valid {
		return nil, false, nil
	}
	return s.moveTo(docID, parentID.String)
}

// Redo moves the current pointer to the newest child of the current node
// and returns its snapshot. ok is false when there is nothing to redo.
func (s *HistoryStore) Redo(docID string) (doc *domain.Document, ok bool, err error) {
	cur, err := s.currentID(docID)
	if err != nil || cur == "" {
		return nil, false, err
	}

	var childID string
	err = s.db.Conn().QueryRow(
		`SELECT id FROM history_nodes WHERE parent_id = ? ORDER BY seq DESC LIMIT 1`, cur,
	).Scan(&childID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load history child: %w", err)
	}
	return s.moveTo(docID, childID)
}

func (s *HistoryStore) moveTo(docID, nodeID string) (*domain.Document, bool, error) {
	var snapshot string
	err := s.db.Conn().QueryRow(`SELECT snapshot_json FROM history_nodes WHERE id = ?`, nodeID).Scan(&snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(snapshot), &doc); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.setCurrent(docID, nodeID); err != nil {
		return nil, false, err
	}
	return &doc, true, nil
}

// Tree returns the history of a document, or nil when none was recorded.
func (s *HistoryStore) Tree(docID string) (*HistoryTree, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, document_id, parent_id, label, created_at
		 FROM history_nodes WHERE document_id = ? ORDER BY seq ASC`, docID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history nodes: %w", err)
	}
	defer rows.Close()

	var nodes []HistoryNode
	var rootID string
	for rows.Next() {
		var n HistoryNode
		if err := rows.Scan(&n.ID, &n.DocumentID, &n.ParentID, &n.Label, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history node: %w", err)
		}
		if n.ParentID == nil && rootID == "" {
			rootID = n.ID
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	currentID, err := s.currentID(docID)
	if err != nil {
		return nil, err
	}
	if currentID == "" {
		currentID = rootID
	}

	return &HistoryTree{
		Nodes:     nodes,
		CurrentID: currentID,
		RootID:    rootID,
	}, nil
}

// Clear removes all history for a document.
func (s *HistoryStore) Clear(docID string) error {
	_, _ = s.db.Conn().Exec(`DELETE FROM history_state WHERE document_id = ?`, docID)
	if _, err := s.db.Conn().Exec(`DELETE FROM history_nodes WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *HistoryStore) currentID(docID string) (string, error) {
	var id string
	err := s.db.Conn().QueryRow(
		`SELECT current_node_id FROM history_state WHERE document_id = ?`, docID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load history state: %w", err)
	}
	return id, nil
}

func (s *HistoryStore) setCurrent(docID, nodeID string) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO history_state (document_id, current_node_id) VALUES (?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET current_node_id = excluded.current_node_id`,
		docID, nodeID,
	)
	if err != nil {
		return fmt.Errorf("update history state: %w", err)
	}
	return nil
}

// pruneIfNeeded removes the oldest nodes once the count exceeds maxNodes.
// Children of a removed node are re-attached to its parent.
func (s *HistoryStore) pruneIfNeeded(docID string) {
	var count int
	s.db.Conn().QueryRow(`SELECT COUNT(*) FROM history_nodes WHERE document_id = ?`, docID).Scan(&count)
	if count <= s.maxNodes {
		return
	}

	toDelete := count - s.maxNodes

	// Read the current node before opening the rows cursor; the pool has a single connection.
	currentID, _ := s.currentID(docID)

	rows, err := s.db.Conn().Query(
		`SELECT id FROM history_nodes WHERE document_id = ?
		 ORDER BY seq ASC LIMIT ?`, docID, toDelete,
	)
	if err != nil {
		return
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if id != currentID {
			ids = append(ids, id)
		}
	}
	rows.Close()

	for _, id := range ids {
		var parentID sql.NullString
		s.db.Conn().QueryRow(`SELECT parent_id FROM history_nodes WHERE id = ?`, id).Scan(&parentID)

		if parentID.Valid {
			s.db.Conn().Exec(
				`UPDATE history_nodes SET parent_id = ? WHERE parent_id = ?`,
				parentID.String, id,
			)
		} else {
			s.db.Conn().Exec(
				`UPDATE history_nodes SET parent_id = NULL WHERE parent_id = ?`, id,
			)
		}

		s.db.Conn().Exec(`DELETE FROM history_nodes WHERE id = ?`, id)
	}
}
