package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withForUpdate 追加行级悲观锁子句（SELECT ... FOR UPDATE）。
// sqlite 不支持 FOR UPDATE，测试库下直接跳过。
func withForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
