package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"github.com/ternarybob/secsignal/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	filing    interfaces.FilingStorage
	document  interfaces.DocumentStorage
	sentiment interfaces.SentimentStorage
	signal    interfaces.SignalStorage
	state     interfaces.StateStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:        db,
		filing:    NewFilingStorage(db, logger),
		document:  NewDocumentStorage(db, logger),
		sentiment: NewSentimentStorage(db, logger),
		signal:    NewSignalStorage(db, logger),
		state:     NewStateStorage(db, logger),
		logger:    logger,
	}
}

// FilingStorage returns the Filing storage interface
func (m *Manager) FilingStorage() interfaces.FilingStorage {
	return m.filing
}

// DocumentStorage returns the Document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// SentimentStorage returns the Sentiment storage interface
func (m *Manager) SentimentStorage() interfaces.SentimentStorage {
	return m.sentiment
}

// SignalStorage returns the Signal storage interface
func (m *Manager) SignalStorage() interfaces.SignalStorage {
	return m.signal
}

// StateStorage returns the pipeline state storage interface
func (m *Manager) StateStorage() interfaces.StateStorage {
	return m.state
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
