package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Scope ограничивает выборку по состоянию корзины.
type Scope int

const (
	// ScopeLive — только неудалённые заказы (по умолчанию).
	ScopeLive Scope = iota
	// ScopeTrash — только заказы в корзине.
	ScopeTrash
	// ScopeAll — все заказы.
	ScopeAll
)

// SortOrder задаёт порядок списка заказов.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortPriceHigh SortOrder = "price-high"
	SortPriceLow  SortOrder = "price-low"
	SortName      SortOrder = "name"
)

// ParseSortOrder возвращает порядок сортировки; неизвестные значения дают SortNewest.
func ParseSortOrder(raw string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case SortOldest:
		return SortOldest
	case SortPriceHigh:
		return SortPriceHigh
	case SortPriceLow:
		return SortPriceLow
	case SortName:
		return SortName
	default:
		return SortNewest
	}
}

// OrderFilter описывает выборку заказов из хранилища.
type OrderFilter struct {
	// IDs ограничивает выборку конкретными заказами, если не пуст.
	IDs []int64
	// Status фильтрует по статусу исполнения; пустое значение — все статусы.
	Status OrderStatus
	// Search ищет подстроку без учёта регистра в номере, имени, email, телефоне,
	// трек-номере и внутреннем коде.
	Search string
	Scope  Scope
	// From и To ограничивают OrderDate, обе границы включительно.
	From  *time.Time
	To    *time.Time
	Sort  SortOrder
	Limit int
}

// Match проверяет заказ на соответствие фильтру (без учёта Sort и Limit).
func (f OrderFilter) Match(o Order) bool {
	switch f.Scope {
	case ScopeLive:
		if o.IsDeleted {
			return false
		}
	case ScopeTrash:
		if !o.IsDeleted {
			return false
		}
	}
	if len(f.IDs) > 0 && !containsID(f.IDs, o.ID) {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.From != nil && o.OrderDate.Before(*f.From) {
		return false
	}
	if f.To != nil && o.OrderDate.After(*f.To) {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		return matchesSearch(o, search)
	}
	return true
}

func matchesSearch(o Order, search string) bool {
	fields := []string{
		strconv.FormatInt(o.ID, 10),
		o.Customer.FirstName,
		o.Customer.LastName,
		o.Customer.Email,
		o.Customer.Phone,
		o.TrackingNumber,
		o.InternalReference,
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// SortOrders упорядочивает заказы на месте. При равенстве ключей порядок определяет ID.
func SortOrders(orders []Order, order SortOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		switch order {
		case SortOldest:
			if !a.OrderDate.Equal(b.OrderDate) {
				return a.OrderDate.Before(b.OrderDate)
			}
			return a.ID < b.ID
		case SortPriceHigh:
			if cmp := a.Total.Cmp(b.Total); cmp != 0 {
				return cmp > 0
			}
			return a.ID > b.ID
		case SortPriceLow:
			if cmp := a.Total.Cmp(b.Total); cmp != 0 {
				return cmp < 0
			}
			return a.ID < b.ID
		case SortName:
			if a.Customer.LastName != b.Customer.LastName {
				return a.Customer.LastName < b.Customer.LastName
			}
			if a.Customer.FirstName != b.Customer.FirstName {
				return a.Customer.FirstName < b.Customer.FirstName
			}
			return a.ID < b.ID
		default:
			if !a.OrderDate.Equal(b.OrderDate) {
				return a.OrderDate.After(b.OrderDate)
			}
			return a.ID > b.ID
		}
	})
}
