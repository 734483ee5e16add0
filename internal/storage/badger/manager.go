package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
)

// Manager aggregates the per-entity storages over one Badger database.
type Manager struct {
	db             *BadgerDB
	flightStorage  interfaces.FlightStorage
	priceStorage   interfaces.PriceStorage
	flexStorage    interfaces.FlexStorage
	contextStorage interfaces.ContextStorage
	jobStorage     interfaces.JobStorage
}

// NewManager opens the database and wires up all storages.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize badger database: %w", err)
	}

	return &Manager{
		db:             db,
		flightStorage:  NewFlightStorage(db, logger),
		priceStorage:   NewPriceStorage(db, logger),
		flexStorage:    NewFlexStorage(db, logger),
		contextStorage: NewContextStorage(db, logger),
		jobStorage:     NewJobStorage(db, logger),
	}, nil
}

func (m *Manager) FlightStorage() interfaces.FlightStorage {
	return m.flightStorage
}

func (m *Manager) PriceStorage() interfaces.PriceStorage {
	return m.priceStorage
}

func (m *Manager) FlexStorage() interfaces.FlexStorage {
	return m.flexStorage
}

func (m *Manager) ContextStorage() interfaces.ContextStorage {
	return m.contextStorage
}

func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobStorage
}

func (m *Manager) Close() error {
	return m.db.Close()
}
