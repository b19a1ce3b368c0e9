// internal/repository/memory/store.go
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// Store keeps accounts, transactions, transfers and top-up requests in
// process memory. It implements the ledger repository interfaces; the
// DBExecutor argument only matters when it is a *Tx, which holds its writes
// back from readers until it commits.
type Store struct {
	mu sync.RWMutex

	lastAccountID  int64
	lastTxnID      int64
	lastTransferID int64
	lastTopUpID    int64

	accounts      map[int64]domain.Account
	transactions  map[int64]domain.Transaction
	txnCodes      map[string]int64
	transfers     map[int64]domain.Transfer
	transferCodes map[string]int64
	topUps        map[int64]domain.TopUpRequest
	topUpCodes    map[string]int64
	topUpOrders   map[string]int64
}

var (
	_ repository.AccountRepository     = (*Store)(nil)
	_ repository.TransactionRepository = (*Store)(nil)
	_ repository.TransferRepository    = (*Store)(nil)
	_ repository.TopUpRepository       = (*Store)(nil)
	_ repository.DBExecutor            = (*Store)(nil)
)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:      make(map[int64]domain.Account),
		transactions:  make(map[int64]domain.Transaction),
		txnCodes:      make(map[string]int64),
		transfers:     make(map[int64]domain.Transfer),
		transferCodes: make(map[string]int64),
		topUps:        make(map[int64]domain.TopUpRequest),
		topUpCodes:    make(map[string]int64),
		topUpOrders:   make(map[string]int64),
	}
}

// The Store doubles as the non-transactional executor handed to services.

func (s *Store) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errRawQuery
}

func (s *Store) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errRawQuery
}

func (s *Store) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errRawQuery
}

func (s *Store) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

// write validates a change under the store lock and applies it. Through a
// *Tx the change is buffered instead, and check runs again at commit.
func (s *Store) write(q repository.DBExecutor, check func() error, apply func()) error {
	s.mu.Lock()
	if err := check(); err != nil {
		s.mu.Unlock()
		return err
	}
	tx, ok := q.(*Tx)
	if !ok {
		apply()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return tx.buffer(s, pendingWrite{check: check, apply: apply}, nil)
}

// insert claims an id and unique keys for a new row right away and stores
// the row itself on commit. release gives the keys back on rollback.
func (s *Store) insert(q repository.DBExecutor, claim func() error, release func(), apply func()) error {
	s.mu.Lock()
	if err := claim(); err != nil {
		s.mu.Unlock()
		return err
	}
	tx, ok := q.(*Tx)
	if !ok {
		apply()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return tx.buffer(s, pendingWrite{apply: apply}, func() {
		s.mu.Lock()
		release()
		s.mu.Unlock()
	})
}

// --- accounts ---

func (s *Store) CreateAccount(_ context.Context, q repository.DBExecutor, account *domain.Account) error {
	var row domain.Account
	return s.insert(q, func() error {
		s.lastAccountID++
		account.ID = s.lastAccountID
		row = *account
		return nil
	}, func() {}, func() {
		s.accounts[row.ID] = row
	})
}

func (s *Store) GetAccountByID(_ context.Context, _ repository.DBExecutor, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &account, nil
}

// GetAccountByIDForUpdate has no row lock of its own; callers serialize on
// the balance mutator's account locks.
func (s *Store) GetAccountByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	return s.GetAccountByID(ctx, q, id)
}

func (s *Store) accountExists(id int64) func() error {
	return func() error {
		if _, ok := s.accounts[id]; !ok {
			return util.ErrNotFound
		}
		return nil
	}
}

func (s *Store) SetAccountBalance(_ context.Context, q repository.DBExecutor, id int64, balance decimal.Decimal, at time.Time) error {
	return s.write(q, s.accountExists(id), func() {
		account := s.accounts[id]
		account.Balance = balance
		account.UpdatedAt = at
		s.accounts[id] = account
	})
}

func (s *Store) DeactivateAccount(_ context.Context, q repository.DBExecutor, id int64, at time.Time) error {
	return s.write(q, s.accountExists(id), func() {
		account := s.accounts[id]
		if !account.IsActive {
			return
		}
		account.IsActive = false
		account.DeactivatedAt = &at
		account.UpdatedAt = at
		s.accounts[id] = account
	})
}

// --- transactions ---

func (s *Store) CreateTransaction(_ context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	var row domain.Transaction
	return s.insert(q, func() error {
		if _, taken := s.txnCodes[transaction.Code]; taken {
			return util.ErrDuplicateCode
		}
		s.lastTxnID++
		transaction.ID = s.lastTxnID
		s.txnCodes[transaction.Code] = transaction.ID
		row = *transaction
		return nil
	}, func() {
		delete(s.txnCodes, row.Code)
	}, func() {
		s.transactions[row.ID] = row
	})
}

func (s *Store) GetTransactionByID(_ context.Context, _ repository.DBExecutor, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &txn, nil
}

func (s *Store) GetTransactionByCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.Transaction, error) {
	s.mu.RLock()
	id, ok := s.txnCodes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrNotFound
	}
	return s.GetTransactionByID(ctx, q, id)
}

func (s *Store) ListTransactionsByAccount(_ context.Context, _ repository.DBExecutor, accountID int64, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	s.mu.RLock()
	matched := make([]domain.Transaction, 0)
	for _, txn := range s.transactions {
		if txn.AccountID != accountID {
			continue
		}
		if filter.From != nil && txn.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !txn.CreatedAt.Before(*filter.To) {
			continue
		}
		matched = append(matched, txn)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (s *Store) GetLatestSuccessfulTransaction(_ context.Context, _ repository.DBExecutor, accountID int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.Transaction
	for _, txn := range s.transactions {
		if txn.AccountID != accountID || txn.Status != domain.TransactionStatusSuccess {
			continue
		}
		if latest == nil || txn.ID > latest.ID {
			t := txn
			latest = &t
		}
	}
	if latest == nil {
		return nil, util.ErrNotFound
	}
	return latest, nil
}

func (s *Store) UpdateTransactionStatus(_ context.Context, q repository.DBExecutor, id int64, from, to domain.TransactionStatus, processedAt time.Time) error {
	return s.write(q, func() error {
		txn, ok := s.transactions[id]
		if !ok {
			return util.ErrNotFound
		}
		if txn.Status != from {
			return util.ErrStatusConflict
		}
		return nil
	}, func() {
		txn := s.transactions[id]
		txn.Status = to
		txn.ProcessedAt = &processedAt
		s.transactions[id] = txn
	})
}

func (s *Store) ListTransactionsByStatus(_ context.Context, _ repository.DBExecutor, status domain.TransactionStatus, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	out := make([]domain.Transaction, 0)
	for _, txn := range s.transactions {
		if txn.Status == status && txn.CreatedAt.Before(olderThan) {
			out = append(out, txn)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- transfers ---

func (s *Store) CreateTransfer(_ context.Context, q repository.DBExecutor, transfer *domain.Transfer) error {
	var row domain.Transfer
	return s.insert(q, func() error {
		if _, taken := s.transferCodes[transfer.Code]; taken {
			return util.ErrDuplicateCode
		}
		s.lastTransferID++
		transfer.ID = s.lastTransferID
		s.transferCodes[transfer.Code] = transfer.ID
		row = *transfer
		return nil
	}, func() {
		delete(s.transferCodes, row.Code)
	}, func() {
		s.transfers[row.ID] = row
	})
}

func (s *Store) GetTransferByID(_ context.Context, _ repository.DBExecutor, id int64) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transfer, ok := s.transfers[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &transfer, nil
}

func (s *Store) GetTransferByCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.Transfer, error) {
	s.mu.RLock()
	id, ok := s.transferCodes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrNotFound
	}
	return s.GetTransferByID(ctx, q, id)
}

func (s *Store) UpdateTransfer(_ context.Context, q repository.DBExecutor, id int64, from domain.TransactionStatus, update domain.TransferUpdate) error {
	return s.write(q, func() error {
		transfer, ok := s.transfers[id]
		if !ok {
			return util.ErrNotFound
		}
		if transfer.Status != from {
			return util.ErrStatusConflict
		}
		return nil
	}, func() {
		transfer := s.transfers[id]
		update.Apply(&transfer, time.Now().UTC())
		s.transfers[id] = transfer
	})
}

// --- top-up requests ---

func (s *Store) CreateTopUpRequest(_ context.Context, q repository.DBExecutor, request *domain.TopUpRequest) error {
	var row domain.TopUpRequest
	return s.insert(q, func() error {
		if _, taken := s.topUpCodes[request.Code]; taken {
			return util.ErrDuplicateCode
		}
		if request.GatewayOrderID != nil {
			if _, taken := s.topUpOrders[*request.GatewayOrderID]; taken {
				return util.ErrDuplicateCode
			}
		}
		s.lastTopUpID++
		request.ID = s.lastTopUpID
		s.topUpCodes[request.Code] = request.ID
		if request.GatewayOrderID != nil {
			s.topUpOrders[*request.GatewayOrderID] = request.ID
		}
		row = *request
		return nil
	}, func() {
		delete(s.topUpCodes, row.Code)
		if row.GatewayOrderID != nil {
			delete(s.topUpOrders, *row.GatewayOrderID)
		}
	}, func() {
		s.topUps[row.ID] = row
	})
}

func (s *Store) GetTopUpRequestByID(_ context.Context, _ repository.DBExecutor, id int64) (*domain.TopUpRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.topUps[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return &request, nil
}

func (s *Store) GetTopUpRequestByGatewayOrderID(ctx context.Context, q repository.DBExecutor, orderID string) (*domain.TopUpRequest, error) {
	s.mu.RLock()
	id, ok := s.topUpOrders[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrNotFound
	}
	return s.GetTopUpRequestByID(ctx, q, id)
}

func (s *Store) SetGatewayPayment(_ context.Context, q repository.DBExecutor, id int64, paymentID, payURL string) error {
	return s.write(q, func() error {
		if _, ok := s.topUps[id]; !ok {
			return util.ErrNotFound
		}
		return nil
	}, func() {
		request := s.topUps[id]
		request.GatewayPaymentID = &paymentID
		request.PayURL = &payURL
		request.UpdatedAt = time.Now().UTC()
		s.topUps[id] = request
	})
}

func (s *Store) ResolveTopUpRequest(_ context.Context, q repository.DBExecutor, id int64, from domain.TopUpStatus, res domain.TopUpResolution) error {
	return s.write(q, func() error {
		request, ok := s.topUps[id]
		if !ok {
			return util.ErrNotFound
		}
		if request.Status != from {
			return util.ErrStatusConflict
		}
		return nil
	}, func() {
		request := s.topUps[id]
		res.Apply(&request, time.Now().UTC())
		s.topUps[id] = request
	})
}

func (s *Store) ListTopUpRequestsByStatus(_ context.Context, _ repository.DBExecutor, status domain.TopUpStatus, olderThan time.Time, limit int) ([]domain.TopUpRequest, error) {
	s.mu.RLock()
	out := make([]domain.TopUpRequest, 0)
	for _, request := range s.topUps {
		if request.Status == status && request.CreatedAt.Before(olderThan) {
			out = append(out, request)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
