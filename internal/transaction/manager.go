package transaction

import (
	"sync"
	"time"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

// Manager implements the TransactionManager interface. The registrar only
// ever receives requests (REGISTER), so Manager deals exclusively in server
// transactions; there is no outbound client-transaction support.
type Manager struct {
	transactions  map[string]Transaction
	mutex         sync.RWMutex
	sendMessage   func(*parser.SIPMessage) error
	cleanupTicker *time.Ticker
	stopCleanup   chan bool
}

// NewManager creates a new transaction manager
func NewManager(sendFunc func(*parser.SIPMessage) error) *Manager {
	m := &Manager{
		transactions: make(map[string]Transaction),
		sendMessage:  sendFunc,
		stopCleanup:  make(chan bool),
	}

	// Start cleanup goroutine
	m.startCleanupRoutine()

	return m
}

// CreateTransaction creates a new server transaction for an inbound request.
func (m *Manager) CreateTransaction(msg *parser.SIPMessage) Transaction {
	if !msg.IsRequest() {
		return nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	transaction := NewServerTransaction(msg, m.sendMessage)

	id := transaction.GetID()
	m.transactions[id] = transaction

	return transaction
}

// FindTransaction finds an existing transaction based on the message
func (m *Manager) FindTransaction(msg *parser.SIPMessage) Transaction {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	id := generateTransactionID(msg)
	return m.transactions[id]
}

// FindTransactionByID finds a transaction by its ID
func (m *Manager) FindTransactionByID(id string) Transaction {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.transactions[id]
}

// RemoveTransaction removes a transaction from the manager
func (m *Manager) RemoveTransaction(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if transaction, exists := m.transactions[id]; exists {
		if st, ok := transaction.(*ServerTransaction); ok {
			st.cancelTimerJ()
		}
		delete(m.transactions, id)
	}
}

// CleanupExpired removes expired transactions
func (m *Manager) CleanupExpired() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	expiredIDs := make([]string, 0)

	for id, transaction := range m.transactions {
		if transaction.GetState() == StateTerminated {
			expiredIDs = append(expiredIDs, id)
		} else if st, ok := transaction.(*ServerTransaction); ok && st.IsExpired() {
			expiredIDs = append(expiredIDs, id)
		}
	}

	for _, id := range expiredIDs {
		if transaction, exists := m.transactions[id]; exists {
			if st, ok := transaction.(*ServerTransaction); ok {
				st.cancelTimerJ()
			}
			delete(m.transactions, id)
		}
	}
}

// GetTransactionCount returns the number of active transactions
func (m *Manager) GetTransactionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.transactions)
}

// GetTransactions returns a copy of all active transactions
func (m *Manager) GetTransactions() map[string]Transaction {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	transactions := make(map[string]Transaction)
	for id, transaction := range m.transactions {
		transactions[id] = transaction
	}

	return transactions
}

// ProcessMessage processes an incoming message and routes it to the appropriate transaction
func (m *Manager) ProcessMessage(msg *parser.SIPMessage) error {
	transaction := m.FindTransaction(msg)

	if transaction != nil {
		return transaction.ProcessMessage(msg)
	}

	if msg.IsRequest() {
		transaction = m.CreateTransaction(msg)
		if transaction != nil {
			return transaction.ProcessMessage(msg)
		}
	}

	return nil
}

// SendResponse sends a response through an existing server transaction
func (m *Manager) SendResponse(msg *parser.SIPMessage, transactionID string) error {
	if !msg.IsResponse() {
		return nil
	}

	transaction := m.FindTransactionByID(transactionID)
	if transaction == nil {
		return nil
	}

	if st, ok := transaction.(*ServerTransaction); ok {
		return st.SendResponse(msg)
	}

	return nil
}

// startCleanupRoutine starts a background goroutine to clean up expired transactions
func (m *Manager) startCleanupRoutine() {
	m.cleanupTicker = time.NewTicker(30 * time.Second)

	go func() {
		for {
			select {
			case <-m.cleanupTicker.C:
				m.CleanupExpired()
			case <-m.stopCleanup:
				m.cleanupTicker.Stop()
				return
			}
		}
	}()
}

// Stop stops the transaction manager and cleans up resources
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, transaction := range m.transactions {
		if st, ok := transaction.(*ServerTransaction); ok {
			st.cancelTimerJ()
		}
		delete(m.transactions, id)
	}
}
