// Package mongo implements the namespace catalog on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/archivehub/archivehub/internal/domain"
)

const (
	filesCollection       = "archive_files"
	directoriesCollection = "archive_directories"
)

type Store struct {
	database *mongo.Database
}

type fileDocument struct {
	ID            string    `bson:"id"`
	OwnerID       string    `bson:"owner_id"`
	OwnerName     string    `bson:"owner_name"`
	DisplayName   string    `bson:"display_name"`
	StoredName    string    `bson:"stored_name"`
	VirtualPath   string    `bson:"virtual_path"`
	DirectoryPath string    `bson:"directory_path"`
	ContentType   string    `bson:"content_type"`
	ByteSize      int64     `bson:"byte_size"`
	CreatedAt     time.Time `bson:"created_at"`
}

type directoryDocument struct {
	ID         string    `bson:"id"`
	OwnerID    string    `bson:"owner_id"`
	OwnerName  string    `bson:"owner_name"`
	Name       string    `bson:"name"`
	Path       string    `bson:"path"`
	ParentPath string    `bson:"parent_path"`
	CreatedAt  time.Time `bson:"created_at"`
}

// New creates a catalog store backed by the given database and ensures its
// indexes exist.
func New(database *mongo.Database) *Store {
	store := &Store{database: database}
	store.ensureIndexes()
	return store
}

func (s *Store) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "owner_name", Value: 1}, {Key: "directory_path", Value: 1}}},
	}
	if _, err := s.database.Collection(filesCollection).Indexes().CreateMany(ctx, fileIndexes); err != nil {
		log.Warn().Err(err).Str("collection", filesCollection).Msg("Failed to create indexes")
	}

	directoryIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "owner_name", Value: 1}, {Key: "parent_path", Value: 1}}},
		{Keys: bson.D{{Key: "owner_name", Value: 1}, {Key: "path", Value: 1}}},
	}
	if _, err := s.database.Collection(directoriesCollection).Indexes().CreateMany(ctx, directoryIndexes); err != nil {
		log.Warn().Err(err).Str("collection", directoriesCollection).Msg("Failed to create indexes")
	}
}

func (s *Store) CreateFile(ctx context.Context, record *domain.FileRecord) error {
	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.database.Collection(filesCollection).InsertOne(ctx, toFileDocument(record))
	if err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}

	return nil
}

func (s *Store) CreateDirectory(ctx context.Context, record *domain.DirectoryRecord) error {
	collection := s.database.Collection(directoriesCollection)

	filter := bson.M{
		"owner_id":    record.OwnerID,
		"owner_name":  record.OwnerName,
		"path":        record.Path,
		"parent_path": record.ParentPath,
	}
	err := collection.FindOne(ctx, filter).Err()
	if err == nil {
		return domain.ErrAlreadyExists
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to check for existing directory: %w", err)
	}

	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if _, err := collection.InsertOne(ctx, toDirectoryDocument(record)); err != nil {
		return fmt.Errorf("failed to insert directory record: %w", err)
	}

	return nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*domain.FileRecord, error) {
	var doc fileDocument
	err := s.database.Collection(filesCollection).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}

	return fromFileDocument(&doc), nil
}

func (s *Store) GetDirectory(ctx context.Context, id string) (*domain.DirectoryRecord, error) {
	var doc directoryDocument
	err := s.database.Collection(directoriesCollection).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find directory: %w", err)
	}

	return fromDirectoryDocument(&doc), nil
}

func (s *Store) GetFiles(ctx context.Context, ids []string) ([]*domain.FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.database.Collection(filesCollection).Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find files: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []fileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}

	records := make([]*domain.FileRecord, len(docs))
	for i := range docs {
		records[i] = fromFileDocument(&docs[i])
	}

	return records, nil
}

func (s *Store) GetDirectories(ctx context.Context, ids []string) ([]*domain.DirectoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.database.Collection(directoriesCollection).Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find directories: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []directoryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode directory records: %w", err)
	}

	records := make([]*domain.DirectoryRecord, len(docs))
	for i := range docs {
		records[i] = fromDirectoryDocument(&docs[i])
	}

	return records, nil
}

func (s *Store) ListChildren(ctx context.Context, ownerID, ownerName, directoryPath string) ([]*domain.DirectoryRecord, []*domain.FileRecord, error) {
	ownerFilter := bson.M{"owner_id": ownerID, "owner_name": ownerName}

	dirFilter := bson.M{"parent_path": directoryPath}
	for k, v := range ownerFilter {
		dirFilter[k] = v
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "path", Value: 1}})
	cursor, err := s.database.Collection(directoriesCollection).Find(ctx, dirFilter, findOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list directories: %w", err)
	}

	var dirDocs []directoryDocument
	if err := cursor.All(ctx, &dirDocs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode directory records: %w", err)
	}

	fileFilter := bson.M{"directory_path": directoryPath}
	for k, v := range ownerFilter {
		fileFilter[k] = v
	}

	fileOptions := options.Find().SetSort(bson.D{{Key: "virtual_path", Value: 1}})
	cursor, err = s.database.Collection(filesCollection).Find(ctx, fileFilter, fileOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list files: %w", err)
	}

	var fileDocs []fileDocument
	if err := cursor.All(ctx, &fileDocs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode file records: %w", err)
	}

	dirs := make([]*domain.DirectoryRecord, len(dirDocs))
	for i := range dirDocs {
		dirs[i] = fromDirectoryDocument(&dirDocs[i])
	}
	files := make([]*domain.FileRecord, len(fileDocs))
	for i := range fileDocs {
		files[i] = fromFileDocument(&fileDocs[i])
	}

	return dirs, files, nil
}

func (s *Store) ListAllDirectories(ctx context.Context) ([]*domain.DirectoryRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "owner_name", Value: 1}, {Key: "path", Value: 1}})
	cursor, err := s.database.Collection(directoriesCollection).Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list all directories: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []directoryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode directory records: %w", err)
	}

	records := make([]*domain.DirectoryRecord, len(docs))
	for i := range docs {
		records[i] = fromDirectoryDocument(&docs[i])
	}

	return records, nil
}

func (s *Store) CountDescendants(ctx context.Context, ownerID, ownerName, path string) (int64, error) {
	// Exact match catches direct children, the anchored regex catches deeper
	// descendants without the "a" / "ab" prefix collision.
	descendantPattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(path) + "/"}

	fileFilter := bson.M{
		"owner_id":   ownerID,
		"owner_name": ownerName,
		"$or": bson.A{
			bson.M{"directory_path": path},
			bson.M{"directory_path": descendantPattern},
		},
	}
	fileCount, err := s.database.Collection(filesCollection).CountDocuments(ctx, fileFilter)
	if err != nil {
		return 0, fmt.Errorf("failed to count descendant files: %w", err)
	}

	dirFilter := bson.M{
		"owner_id":   ownerID,
		"owner_name": ownerName,
		"$or": bson.A{
			bson.M{"parent_path": path},
			bson.M{"parent_path": descendantPattern},
		},
	}
	dirCount, err := s.database.Collection(directoriesCollection).CountDocuments(ctx, dirFilter)
	if err != nil {
		return 0, fmt.Errorf("failed to count descendant directories: %w", err)
	}

	return fileCount + dirCount, nil
}

func (s *Store) UpdateFilePath(ctx context.Context, id, virtualPath, directoryPath string) error {
	update := bson.M{"$set": bson.M{
		"virtual_path":   virtualPath,
		"directory_path": directoryPath,
	}}

	result, err := s.database.Collection(filesCollection).UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update file path: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.deleteByID(ctx, filesCollection, id)
}

func (s *Store) DeleteDirectory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, directoriesCollection, id)
}

func (s *Store) deleteByID(ctx context.Context, collection, id string) error {
	result, err := s.database.Collection(collection).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", collection, err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Store) ResolveOwnerName(ctx context.Context, ownerID string) (string, error) {
	var file fileDocument
	err := s.database.Collection(filesCollection).FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&file)
	if err == nil {
		return file.OwnerName, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("failed to resolve owner name: %w", err)
	}

	var dir directoryDocument
	err = s.database.Collection(directoriesCollection).FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&dir)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve owner name: %w", err)
	}

	return dir.OwnerName, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.database.Client().Disconnect(ctx)
}

func toFileDocument(record *domain.FileRecord) *fileDocument {
	return &fileDocument{
		ID:            record.ID,
		OwnerID:       record.OwnerID,
		OwnerName:     record.OwnerName,
		DisplayName:   record.DisplayName,
		StoredName:    record.StoredName,
		VirtualPath:   record.VirtualPath,
		DirectoryPath: record.DirectoryPath,
		ContentType:   record.ContentType,
		ByteSize:      record.ByteSize,
		CreatedAt:     record.CreatedAt,
	}
}

func fromFileDocument(doc *fileDocument) *domain.FileRecord {
	return &domain.FileRecord{
		ID:            doc.ID,
		OwnerID:       doc.OwnerID,
		OwnerName:     doc.OwnerName,
		DisplayName:   doc.DisplayName,
		StoredName:    doc.StoredName,
		VirtualPath:   doc.VirtualPath,
		DirectoryPath: doc.DirectoryPath,
		ContentType:   doc.ContentType,
		ByteSize:      doc.ByteSize,
		CreatedAt:     doc.CreatedAt,
	}
}

func toDirectoryDocument(record *domain.DirectoryRecord) *directoryDocument {
	return &directoryDocument{
		ID:         record.ID,
		OwnerID:    record.OwnerID,
		OwnerName:  record.OwnerName,
		Name:       record.Name,
		Path:       record.Path,
		ParentPath: record.ParentPath,
		CreatedAt:  record.CreatedAt,
	}
}

func fromDirectoryDocument(doc *directoryDocument) *domain.DirectoryRecord {
	return &domain.DirectoryRecord{
		ID:         doc.ID,
		OwnerID:    doc.OwnerID,
		OwnerName:  doc.OwnerName,
		Name:       doc.Name,
		Path:       doc.Path,
		ParentPath: doc.ParentPath,
		CreatedAt:  doc.CreatedAt,
	}
}

var _ domain.NamespaceStore = (*Store)(nil)
