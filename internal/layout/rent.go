package layout

const (
	// AccountStorageOverhead is charged on top of every record's data length.
	AccountStorageOverhead = 128
	LamportsPerByteYear    = 3480
	ExemptionYears         = 2
)

// MinimumBalance is the deposit a record of space bytes must hold. The
// deposit is returned to whoever closes the record.
func MinimumBalance(space int) uint64 {
	return uint64(AccountStorageOverhead+space) * LamportsPerByteYear * ExemptionYears
}
