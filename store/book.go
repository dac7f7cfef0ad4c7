package store

import (
	"context"
	"errors"
	"time"

	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("book not found")

func (db *DB) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	utils.SetMatchKeys(book)
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	res, err := db.Books().InsertOne(ctx, book)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) AllBooks(ctx context.Context) ([]models.Book, error) {
	cur, err := db.Books().Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var books []models.Book
	if err := cur.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBook overwrites every user-editable field of the record. Returns the
// updated record, or ErrNotFound.
func (db *DB) UpdateBook(ctx context.Context, id primitive.ObjectID, book *models.Book) (*models.Book, error) {
	utils.SetMatchKeys(book)
	update := bson.M{
		"inputDate":           book.InputDate,
		"author":              book.Author,
		"title":               book.Title,
		"edition":             book.Edition,
		"publicationCity":     book.PublicationCity,
		"publisher":           book.Publisher,
		"publicationYear":     book.PublicationYear,
		"physicalDescription": book.PhysicalDescription,
		"source":              book.Source,
		"subject":             book.Subject,
		"callNumber":          book.CallNumber,
		"isbn":                book.ISBN,
		"level":               book.Level,
		"titleKey":            book.TitleKey,
		"authorKey":           book.AuthorKey,
		"isbnKey":             book.ISBNKey,
		"updatedAt":           time.Now(),
	}
	var updated models.Book
	err := db.Books().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteBook removes a record. Deleting an absent id is not an error
// (idempotent delete); the archived scan key of the removed record is
// returned so the caller can clean up object storage.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (scanKey string, err error) {
	var book models.Book
	err = db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return book.ScanKey, nil
}

// matchFilter builds the duplicate filter for a candidate: normalized
// (title AND author), or non-empty ISBN.
func matchFilter(book *models.Book) bson.M {
	or := []bson.M{}
	if book.TitleKey != "" && book.AuthorKey != "" {
		or = append(or, bson.M{"titleKey": book.TitleKey, "authorKey": book.AuthorKey})
	}
	if book.ISBNKey != "" {
		or = append(or, bson.M{"isbnKey": book.ISBNKey})
	}
	if len(or) == 0 {
		return nil
	}
	return bson.M{"$or": or}
}

// FindMatch returns the existing record the candidate would merge into, or
// nil when there is none.
func (db *DB) FindMatch(ctx context.Context, book *models.Book) (*models.Book, error) {
	utils.SetMatchKeys(book)
	filter := matchFilter(book)
	if filter == nil {
		return nil, nil
	}
	var existing models.Book
	err := db.Books().FindOne(ctx, filter).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// MergeOrInsert is the reconciliation step: an atomic find-and-increment on
// the duplicate filter, falling back to an insert when nothing matches. The
// unique indexes close the race between two concurrent submissions of the
// same new work; losing the insert race re-runs the increment once.
func (db *DB) MergeOrInsert(ctx context.Context, book *models.Book) (*models.Book, bool, error) {
	utils.SetMatchKeys(book)
	merged, err := db.incrementMatch(ctx, book)
	if err != nil {
		return nil, false, err
	}
	if merged != nil {
		return merged, true, nil
	}

	id, err := db.InsertBook(ctx, book)
	if err == nil {
		book.ID = id
		return book, false, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, err
	}
	// Lost the race: someone inserted the same work between the lookup and
	// our insert. Increment theirs instead.
	merged, err = db.incrementMatch(ctx, book)
	if err != nil {
		return nil, false, err
	}
	if merged == nil {
		return nil, false, errors.New("duplicate key on insert but no matching record")
	}
	return merged, true, nil
}

func (db *DB) incrementMatch(ctx context.Context, book *models.Book) (*models.Book, error) {
	filter := matchFilter(book)
	if filter == nil {
		return nil, nil
	}
	var merged models.Book
	err := db.Books().FindOneAndUpdate(ctx,
		filter,
		bson.M{
			"$inc": bson.M{"exemplarCount": 1},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&merged)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// CompleteExtraction writes the extracted fields onto an async placeholder
// record and marks it completed. If the extracted work collides with an
// existing record (unique index), the placeholder is dropped and the
// existing record's exemplar count is incremented instead.
func (db *DB) CompleteExtraction(ctx context.Context, id primitive.ObjectID, book *models.Book) error {
	utils.SetMatchKeys(book)
	update := bson.M{
		"inputDate":           book.InputDate,
		"author":              book.Author,
		"title":               book.Title,
		"edition":             book.Edition,
		"publicationCity":     book.PublicationCity,
		"publisher":           book.Publisher,
		"publicationYear":     book.PublicationYear,
		"physicalDescription": book.PhysicalDescription,
		"source":              book.Source,
		"subject":             book.Subject,
		"callNumber":          book.CallNumber,
		"isbn":                book.ISBN,
		"level":               book.Level,
		"titleKey":            book.TitleKey,
		"authorKey":           book.AuthorKey,
		"isbnKey":             book.ISBNKey,
		"status":              models.StatusCompleted,
		"updatedAt":           time.Now(),
	}
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	merged, mergeErr := db.incrementMatch(ctx, book)
	if mergeErr != nil {
		return mergeErr
	}
	if merged == nil {
		return err
	}
	_, err = db.Books().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// MarkExtractionFailed records an async job failure on its placeholder.
func (db *DB) MarkExtractionFailed(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":    models.StatusFailed,
		"updatedAt": time.Now(),
	}})
	return err
}
