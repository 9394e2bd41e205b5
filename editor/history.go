package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// History returns the History view of the model, containing methods to manipulate
// the undo/redo history and saving recovery files.
func (m *Model) History() *HistoryModel { return (*HistoryModel)(m) }

type HistoryModel Model

// Undo returns an Action to undo the last change.
func (m *HistoryModel) Undo() Action { return MakeAction((*historyUndo)(m)) }

type historyUndo HistoryModel

func (m *historyUndo) Enabled() bool { return len(m.undoStack) > 0 && m.gesture == noGesture }
func (m *historyUndo) Do() {
	m.redoStack = append(m.redoStack, m.d.Copy())
	if len(m.redoStack) > maxUndo {
		m.redoStack = m.redoStack[len(m.redoStack)-maxUndo:]
	}
	m.d = m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	(*Model)(m).afterHistoryJump()
}

// Redo returns an Action to redo the last undone change.
func (m *HistoryModel) Redo() Action { return MakeAction((*historyRedo)(m)) }

type historyRedo HistoryModel

func (m *historyRedo) Enabled() bool { return len(m.redoStack) > 0 && m.gesture == noGesture }
func (m *historyRedo) Do() {
	m.undoStack = append(m.undoStack, m.d.Copy())
	if len(m.undoStack) > maxUndo {
		m.undoStack = m.undoStack[len(m.undoStack)-maxUndo:]
	}
	m.d = m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	(*Model)(m).afterHistoryJump()
}

func (m *Model) afterHistoryJump() {
	m.prevUndoKind = ""
	m.d.ChangedSinceSave = true
	m.d.ChangedSinceRecovery = true
	m.pruneSelections()
	if m.engineStatus == engineReady {
		m.engine.SetTempo(m.d.Project.Tempo)
	}
	m.notify(ProjectChange | SelectionChange | TransportChange)
}

// ClearUndoHistory returns an Action to forget all undo and redo history.
func (m *HistoryModel) ClearUndoHistory() Action { return MakeAction((*clearUndoHistory)(m)) }

type clearUndoHistory HistoryModel

func (m *clearUndoHistory) Enabled() bool { return len(m.undoStack) > 0 || len(m.redoStack) > 0 }
func (m *clearUndoHistory) Do() {
	m.undoStack = m.undoStack[:0]
	m.redoStack = m.redoStack[:0]
	m.prevUndoKind = ""
}

// SaveRecovery saves the current model data to the recovery file on disk if
// there are unsaved changes.
func (m *HistoryModel) SaveRecovery() error {
	if !m.d.ChangedSinceRecovery {
		return nil
	}
	if m.d.RecoveryFilePath == "" {
		return errors.New("no recovery file path")
	}
	out, err := json.Marshal(m.d)
	if err != nil {
		return fmt.Errorf("could not marshal recovery data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.d.RecoveryFilePath), os.ModePerm); err != nil {
		return fmt.Errorf("could not create recovery directory: %w", err)
	}
	if err := os.WriteFile(m.d.RecoveryFilePath, out, 0o644); err != nil {
		return fmt.Errorf("could not write recovery file: %w", err)
	}
	m.d.ChangedSinceRecovery = false
	return nil
}

// UnmarshalRecovery unmarshals the model data from a byte slice, then checks
// if a recovery file exists on disk and loads it instead.
func (m *HistoryModel) UnmarshalRecovery(bytes []byte) {
	var data modelData
	if err := json.Unmarshal(bytes, &data); err != nil {
		return
	}
	m.d = data
	if m.d.RecoveryFilePath != "" {
		if bytes2, err := os.ReadFile(m.d.RecoveryFilePath); err == nil {
			var data modelData
			if json.Unmarshal(bytes2, &data) == nil {
				m.d = data
			}
		}
	}
	m.d.Project.Normalize()
	m.d.ChangedSinceRecovery = false
	(*Model)(m).pruneSelections()
	(*Model)(m).notify(ProjectChange | SelectionChange)
}

// ChangedSinceRecovery reports whether SaveRecovery has something to save.
func (m *HistoryModel) ChangedSinceRecovery() bool { return m.d.ChangedSinceRecovery }
