package repository

import "time"

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*MongoStore)

// WithDatabase sets the database name.
func WithDatabase(name string) MongoOption {
	return func(s *MongoStore) {
		if name != "" {
			s.database = name
		}
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) MongoOption {
	return func(s *MongoStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithOperationTimeout bounds each store call.
func WithOperationTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}
