package models

// ModelRegistry lists every model handed to gorm's AutoMigrate.
var ModelRegistry = []interface{}{
	&WaitlistEntry{},
}
