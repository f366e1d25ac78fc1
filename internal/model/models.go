package model

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Item{},
		&Course{},
		&Transaction{},
		&TransactionHistory{},
		&Review{},
		&Notification{},
		&UserRevenue{},
	}
}
