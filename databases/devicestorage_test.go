package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/lcm-policing/databases"
	"github.com/linesmerrill/lcm-policing/databases/mocks"
	"github.com/linesmerrill/lcm-policing/models"
)

func TestDeviceStorageDatabase_GetItem(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperMissing databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperMissing = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperMissing.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(mongo.ErrNoDocuments)

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.DeviceItem)
		(*arg).Value = `[42]`
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"deviceId": "broken", "key": models.StorageKeyIgnored}).
		Return(srHelperErr)
	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"deviceId": "new", "key": models.StorageKeyIgnored}).
		Return(srHelperMissing)
	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"deviceId": "known", "key": models.StorageKeyIgnored}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "deviceStorage").Return(collectionHelper)

	storage := databases.NewDeviceStorageDatabase(dbHelper)

	_, _, err := storage.GetItem(context.Background(), "broken", models.StorageKeyIgnored)
	assert.EqualError(t, err, "mocked-error")

	value, found, err := storage.GetItem(context.Background(), "new", models.StorageKeyIgnored)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)

	value, found, err = storage.GetItem(context.Background(), "known", models.StorageKeyIgnored)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[42]`, value)
}

func TestDeviceStorageDatabase_SetItem(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.
		On("UpdateOne", context.Background(), bson.M{"deviceId": "known", "key": models.StorageKeyFalse}, mock.MatchedBy(func(update bson.M) bool {
			set, ok := update["$set"].(bson.M)
			return ok && set["value"] == `["9b2c"]`
		}), mock.Anything).
		Return(nil)
	dbHelper.On("Collection", "deviceStorage").Return(collectionHelper)

	storage := databases.NewDeviceStorageDatabase(dbHelper)
	err := storage.SetItem(context.Background(), "known", models.StorageKeyFalse, `["9b2c"]`)

	assert.NoError(t, err)
	collectionHelper.AssertExpectations(t)
}

func TestMemoryDeviceStorage(t *testing.T) {
	storage := databases.NewMemoryDeviceStorage()
	ctx := context.Background()

	_, found, err := storage.GetItem(ctx, "d1", "k")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, storage.SetItem(ctx, "d1", "k", "v1"))
	assert.NoError(t, storage.SetItem(ctx, "d2", "k", "v2"))

	v, found, _ := storage.GetItem(ctx, "d1", "k")
	assert.True(t, found)
	assert.Equal(t, "v1", v)
	v, _, _ = storage.GetItem(ctx, "d2", "k")
	assert.Equal(t, "v2", v)
}
