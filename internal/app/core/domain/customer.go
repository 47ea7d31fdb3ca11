package domain

import (
	"fmt"
	"sort"
)

// Customer 客戶與其信用額度，啟動時載入後不可變
type Customer struct {
	ID    int64 `yaml:"id" json:"id"`
	Limit int64 `yaml:"limit" json:"limit"`
}

// DefaultCustomers 預設的客戶表
func DefaultCustomers() []Customer {
	return []Customer{
		{ID: 1, Limit: 100000},
		{ID: 2, Limit: 80000},
		{ID: 3, Limit: 1000000},
		{ID: 4, Limit: 10000000},
		{ID: 5, Limit: 500000},
	}
}

// Directory 唯讀的客戶額度表
// 建立後不再修改，可以無鎖並發讀取
type Directory struct {
	limits    map[int64]int64
	customers []Customer
}

// NewDirectory 建立客戶額度表
//
// 參數:
//
//	customers: 客戶清單
//
// 回傳:
//
//	*Directory: 額度表
//	error: 重複 ID 或負數額度
func NewDirectory(customers []Customer) (*Directory, error) {
	d := &Directory{
		limits:    make(map[int64]int64, len(customers)),
		customers: make([]Customer, 0, len(customers)),
	}
	for _, c := range customers {
		if c.Limit < 0 {
			return nil, fmt.Errorf("customer %d: negative limit %d", c.ID, c.Limit)
		}
		if _, ok := d.limits[c.ID]; ok {
			return nil, fmt.Errorf("customer %d: duplicated id", c.ID)
		}
		d.limits[c.ID] = c.Limit
		d.customers = append(d.customers, c)
	}
	sort.Slice(d.customers, func(i, j int) bool {
		return d.customers[i].ID < d.customers[j].ID
	})
	return d, nil
}

// LimitOf 取得客戶額度
func (d *Directory) LimitOf(customerID int64) (int64, error) {
	limit, ok := d.limits[customerID]
	if !ok {
		return 0, ErrCustomerNotFound
	}
	return limit, nil
}

// Customers 回傳依 ID 排序的客戶清單副本
func (d *Directory) Customers() []Customer {
	out := make([]Customer, len(d.customers))
	copy(out, d.customers)
	return out
}
