package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	orderColumns = `id, first_name, last_name, email, phone, address, city, postal_code, country,
		subtotal, tax, shipping_cost, discount, total,
		order_date, status, payment_status, priority,
		tracking_number, shipping_carrier, shipping_service, estimated_delivery, actual_delivery,
		assigned_to, admin_notes, internal_reference, customer_notes,
		is_deleted, deleted_at, version, updated_at`
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order = order.Clone()
	order.Version = 0
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			first_name, last_name, email, phone, address, city, postal_code, country,
			subtotal, tax, shipping_cost, discount, total,
			order_date, status, payment_status, priority,
			tracking_number, shipping_carrier, shipping_service, estimated_delivery, actual_delivery,
			assigned_to, admin_notes, internal_reference, customer_notes,
			is_deleted, deleted_at, version, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,
			$9,$10,$11,$12,$13,
			$14,$15,$16,$17,
			$18,$19,$20,$21,$22,
			$23,$24,$25,$26,
			$27,$28,$29,$30
		)
		RETURNING id
	`, append(orderValues(order), order.Version, order.UpdatedAt)...).Scan(&order.ID)
	if err != nil {
		return domain.Order{}, classifyWriteError("insert order", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`, order.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity).Scan(&item.ID); err != nil {
			return domain.Order{}, classifyWriteError("insert order item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := loadItems(ctx, r.db, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args := buildListQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, r.db, lo.Map(orders, func(o domain.Order, _ int) int64 { return o.ID }))
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	saved, err := saveTx(ctx, tx, order)
	if err != nil {
		return domain.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit save order: %w", err)
	}
	return saved, nil
}

// SaveBatch сохраняет заказы в одной транзакции: первая ошибка откатывает весь набор.
func (r *orderRepository) SaveBatch(ctx context.Context, batch []domain.Order) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[int64]struct{}, len(batch))
	result := make([]domain.Order, 0, len(batch))
	for _, order := range batch {
		if _, dup := seen[order.ID]; dup {
			return nil, domain.ErrOrderVersionConflict
		}
		seen[order.ID] = struct{}{}

		saved, err := saveTx(ctx, tx, order)
		if err != nil {
			return nil, err
		}
		result = append(result, saved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save batch: %w", err)
	}
	return result, nil
}

// Purge удаляет заказ, только если он лежит в корзине; позиции удаляются каскадом.
func (r *orderRepository) Purge(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND is_deleted`, id)
	if err != nil {
		return fmt.Errorf("purge order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) PurgeBatch(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ANY($1) AND is_deleted`, lo.Uniq(ids))
	if err != nil {
		return 0, fmt.Errorf("purge orders: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func saveTx(ctx context.Context, tx *sql.Tx, order domain.Order) (domain.Order, error) {
	order = order.Clone()
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}

	args := append(orderValues(order), order.UpdatedAt, order.ID, order.Version)
	err := tx.QueryRowContext(ctx, `
		UPDATE orders
		SET first_name = $1, last_name = $2, email = $3, phone = $4,
		    address = $5, city = $6, postal_code = $7, country = $8,
		    subtotal = $9, tax = $10, shipping_cost = $11, discount = $12, total = $13,
		    order_date = $14, status = $15, payment_status = $16, priority = $17,
		    tracking_number = $18, shipping_carrier = $19, shipping_service = $20,
		    estimated_delivery = $21, actual_delivery = $22,
		    assigned_to = $23, admin_notes = $24, internal_reference = $25, customer_notes = $26,
		    is_deleted = $27, deleted_at = $28,
		    version = version + 1,
		    updated_at = $29
		WHERE id = $30
		  AND version = $31
		RETURNING version
	`, args...).Scan(&order.Version)
	if errors.Is(err, sql.ErrNoRows) {
		exists, err := orderExistsTx(ctx, tx, order.ID)
		if err != nil {
			return domain.Order{}, err
		}
		if !exists {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.ErrOrderVersionConflict
	}
	if err != nil {
		return domain.Order{}, classifyWriteError("update order", err)
	}

	items, err := loadItems(ctx, tx, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]

	return order, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadItems загружает позиции сразу для набора заказов.
func loadItems(ctx context.Context, q queryer, orderIDs []int64) (map[int64][]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]domain.LineItem, len(orderIDs))
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID int64) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

// orderValues возвращает значения колонок orders от first_name до deleted_at.
func orderValues(o domain.Order) []any {
	c := o.Customer
	return []any{
		c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.City, c.PostalCode, c.Country,
		o.Subtotal, o.Tax, o.ShippingCost, o.Discount, o.Total,
		o.OrderDate, string(o.Status), string(o.PaymentStatus), string(o.Priority),
		o.TrackingNumber, o.ShippingCarrier, o.ShippingService, nullTime(o.EstimatedDelivery), nullTime(o.ActualDelivery),
		o.AssignedTo, o.AdminNotes, o.InternalReference, o.CustomerNotes,
		o.IsDeleted, nullTime(o.DeletedAt),
	}
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o                               domain.Order
		status, paymentStatus, priority string
		estimated, actual, deletedAt    sql.NullTime
	)
	c := &o.Customer
	if err := row.Scan(
		&o.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.City, &c.PostalCode, &c.Country,
		&o.Subtotal, &o.Tax, &o.ShippingCost, &o.Discount, &o.Total,
		&o.OrderDate, &status, &paymentStatus, &priority,
		&o.TrackingNumber, &o.ShippingCarrier, &o.ShippingService, &estimated, &actual,
		&o.AssignedTo, &o.AdminNotes, &o.InternalReference, &o.CustomerNotes,
		&o.IsDeleted, &deletedAt, &o.Version, &o.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	o.Priority = domain.Priority(priority)
	o.OrderDate = o.OrderDate.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	o.EstimatedDelivery = timePtr(estimated)
	o.ActualDelivery = timePtr(actual)
	o.DeletedAt = timePtr(deletedAt)
	return o, nil
}

// buildListQuery собирает SELECT по фильтру. Поиск повторяет in-memory семантику:
// подстрока без учёта регистра, спецсимволы LIKE экранируются.
func buildListQuery(filter domain.OrderFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch filter.Scope {
	case domain.ScopeLive:
		where = append(where, "NOT is_deleted")
	case domain.ScopeTrash:
		where = append(where, "is_deleted")
	}
	if len(filter.IDs) > 0 {
		where = append(where, "id = ANY("+arg(filter.IDs)+")")
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.From != nil {
		where = append(where, "order_date >= "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "order_date <= "+arg(*filter.To))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg("%" + likeEscaper.Replace(search) + "%")
		where = append(where, "(CAST(id AS TEXT) ILIKE "+p+
			" OR first_name ILIKE "+p+
			" OR last_name ILIKE "+p+
			" OR email ILIKE "+p+
			" OR phone ILIKE "+p+
			" OR tracking_number ILIKE "+p+
			" OR internal_reference ILIKE "+p+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + orderColumns + " FROM orders")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + orderByClause(filter.Sort))
	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + arg(filter.Limit))
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func orderByClause(sort domain.SortOrder) string {
	switch sort {
	case domain.SortOldest:
		return "order_date ASC, id ASC"
	case domain.SortPriceHigh:
		return "total DESC, id DESC"
	case domain.SortPriceLow:
		return "total ASC, id ASC"
	case domain.SortName:
		return `last_name COLLATE "C" ASC, first_name COLLATE "C" ASC, id ASC`
	default:
		return "order_date DESC, id DESC"
	}
}

func classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.ErrOrderVersionConflict
		case pgCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidInput, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

var _ domain.OrderRepository = (*orderRepository)(nil)
