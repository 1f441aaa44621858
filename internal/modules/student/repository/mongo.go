package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/pkg/apperror"
)

const StudentCollection = "students"

type studentDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Name            string             `bson:"name"`
	School          string             `bson:"school"`
	Hub             string             `bson:"hub"`
	CurrentActivity string             `bson:"current_activity"`
	Age             *int               `bson:"age,omitempty"`
	Gender          string             `bson:"gender"`
	Status          string             `bson:"status"`
	Email           *string            `bson:"email,omitempty"`
	ImageStorageID  string             `bson:"image_storage_id,omitempty"`
	ImageURL        string             `bson:"image_url,omitempty"`
	JoinedAt        time.Time          `bson:"joined_at"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func (d *studentDocument) toEntity() *entity.Student {
	return &entity.Student{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		School:          d.School,
		Hub:             d.Hub,
		CurrentActivity: d.CurrentActivity,
		Age:             d.Age,
		Gender:          d.Gender,
		Status:          entity.StudentStatus(d.Status),
		Email:           d.Email,
		Image:           entity.ImageRef{StorageID: d.ImageStorageID, URL: d.ImageURL},
		JoinedAt:        d.JoinedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type mongoStudentRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStudentRepository(db *mongo.Database) StudentRepository {
	return &mongoStudentRepository{
		coll: db.Collection(StudentCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureStudentIndexes creates the email uniqueness index and lookup
// indexes. Students without an email are excluded from the unique index.
func EnsureStudentIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(StudentCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: FieldEmail, Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{FieldEmail: bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: FieldHub, Value: 1}}},
		{Keys: bson.D{{Key: FieldSchool, Value: 1}}},
		{Keys: bson.D{{Key: FieldStatus, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create student indexes: %w", err)
	}
	return nil
}

func (r *mongoStudentRepository) Create(ctx context.Context, student *entity.Student) error {
	now := r.now()
	doc := studentDocument{
		Name:            student.Name,
		School:          student.School,
		Hub:             student.Hub,
		CurrentActivity: student.CurrentActivity,
		Age:             student.Age,
		Gender:          student.Gender,
		Status:          string(student.Status),
		Email:           student.Email,
		ImageStorageID:  student.Image.StorageID,
		ImageURL:        student.Image.URL,
		JoinedAt:        student.JoinedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return translateMongoError(err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		student.ID = oid.Hex()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	return nil
}

func (r *mongoStudentRepository) FindByID(ctx context.Context, id string) (*entity.Student, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}

	var doc studentDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toEntity(), nil
}

func (r *mongoStudentRepository) Find(ctx context.Context, filter Filter) ([]*entity.Student, error) {
	query := bson.M{}
	if filter.SearchTerm != "" {
		query[FieldName] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.SearchTerm), Options: "i"}
	}
	if filter.Hub != "" {
		query[FieldHub] = filter.Hub
	}
	if filter.Status != "" {
		query[FieldStatus] = filter.Status
	}
	if filter.CurrentActivity != "" {
		query[FieldCurrentActivity] = filter.CurrentActivity
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, translateMongoError(err)
	}
	defer cursor.Close(ctx)

	var docs []studentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translateMongoError(err)
	}

	students := make([]*entity.Student, 0, len(docs))
	for i := range docs {
		students = append(students, docs[i].toEntity())
	}
	return students, nil
}

func (r *mongoStudentRepository) Update(ctx context.Context, id string, patch Patch) (*entity.Student, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}

	set := bson.M{"updated_at": r.now()}
	unset := bson.M{}
	for key, value := range patch {
		if isNil(value) {
			unset[key] = ""
			continue
		}
		set[key] = value
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var doc studentDocument
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toEntity(), nil
}

func (r *mongoStudentRepository) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, translateMongoError(err)
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoStudentRepository) Distinct(ctx context.Context, field string) ([]string, error) {
	if !DistinctFields[field] {
		return nil, apperror.NewValidationError("field", "must be one of hub, school, gender")
	}

	raw, err := r.coll.Distinct(ctx, field, bson.M{field: bson.M{"$nin": bson.A{nil, ""}}})
	if err != nil {
		return nil, translateMongoError(err)
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			values = append(values, s)
		}
	}
	sort.Strings(values)
	return values, nil
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *int:
		return t == nil
	case *string:
		return t == nil
	default:
		return false
	}
}

func translateMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperror.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: email already registered", apperror.ErrConflict)
	default:
		return fmt.Errorf("%w: %w", apperror.ErrStore, err)
	}
}
