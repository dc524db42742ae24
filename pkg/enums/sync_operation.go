package enums

// SyncOperation identifies one of the catalog sync flavors.
type SyncOperation string

const (
	SyncOperationPrice    SyncOperation = "price"
	SyncOperationStock    SyncOperation = "stock"
	SyncOperationShipping SyncOperation = "shipping"
	SyncOperationFull     SyncOperation = "full"
)

var validSyncOperations = []SyncOperation{
	SyncOperationPrice,
	SyncOperationStock,
	SyncOperationShipping,
	SyncOperationFull,
}

// String implements fmt.Stringer.
func (o SyncOperation) String() string {
	return string(o)
}

// IsValid reports whether the value is a known SyncOperation.
func (o SyncOperation) IsValid() bool {
	for _, candidate := range validSyncOperations {
		if candidate == o {
			return true
		}
	}
	return false
}
