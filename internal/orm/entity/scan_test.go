package entity

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timestamps struct {
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type Account struct {
	Id int64 `db:"id,pk,auto,seq=accounts_id_seq"`
}

type Shipment struct {
	timestamps
	Id         uuid.UUID      `db:",pk"`
	AccountId  int64          `db:"account_ref"`
	Account    *Account       `db:",fk=AccountId"`
	Items      []ShipmentItem `db:",fk=ShipmentId"`
	Label      string         `db:"label,size=64"`
	Notes      sql.NullString `db:"notes,null"`
	Ignored    string         `db:"-"`
	Cache      map[string]int
	unexported int
}

type ShipmentItem struct {
	Id         int64 `db:",pk"`
	ShipmentId uuid.UUID
}

func (Shipment) TableName() string { return "shipping.shipments" }

func TestScan(t *testing.T) {
	def, err := Scan(reflect.TypeOf(&Shipment{}))
	require.NoError(t, err)

	assert.Equal(t, "shipments", def.Table().Name)
	assert.Equal(t, "shipping", def.Table().Schema)

	names := make([]string, 0)
	for _, p := range def.Properties() {
		names = append(names, p.Property().Name+":"+p.Kind().String())
	}
	assert.Equal(t, []string{
		"CreatedAt:primitive",
		"UpdatedAt:primitive",
		"Id:primitive",
		"AccountId:primitive",
		"Account:complex",
		"Items:collection",
		"Label:primitive",
		"Notes:primitive",
	}, names)

	primitives := def.PrimitiveProperties()
	byName := make(map[string]*PrimitivePropertyDefinition)
	for _, p := range primitives {
		byName[p.Property().Name] = p
	}

	assert.Equal(t, "created_at", byName["CreatedAt"].Column().Name)
	assert.Equal(t, []int{0, 0}, byName["CreatedAt"].Property().Index)
	assert.True(t, byName["UpdatedAt"].Column().Nullable)
	assert.False(t, byName["CreatedAt"].Column().Nullable)
	assert.Equal(t, "id", byName["Id"].Column().Name)
	assert.True(t, byName["Id"].IsPrimaryKey())
	assert.Equal(t, "account_ref", byName["AccountId"].Column().Name)
	assert.Equal(t, 64, byName["Label"].Column().Size)
	assert.True(t, byName["Notes"].Column().Nullable)

	complexDefs := def.ComplexProperties()
	require.Len(t, complexDefs, 1)
	assert.Equal(t, "AccountId", complexDefs[0].ForeignKey())

	collections := def.CollectionProperties()
	require.Len(t, collections, 1)
	assert.Equal(t, "ShipmentId", collections[0].ForeignKey())
	assert.Equal(t, reflect.TypeOf(ShipmentItem{}), collections[0].ElementType())
}

func TestScanDefaults(t *testing.T) {
	def, err := Scan(reflect.TypeOf(Account{}))
	require.NoError(t, err)

	assert.Equal(t, "account", def.Table().Name)
	prims := def.PrimitiveProperties()
	require.Len(t, prims, 1)
	assert.True(t, prims[0].IsAutoIncrement())
	assert.Equal(t, "accounts_id_seq", prims[0].SequenceName())
}

type badTags struct {
	Id      int64     `db:"id,primary"`
	Size    string    `db:"size,size=big"`
	Ref     int64     `db:",fk=Other"`
	Parent  *Account  `db:"parent"`
	Channel chan int  `db:"channel"`
	Fine    string
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(reflect.TypeOf(badTags{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, err.Error(), "failed with 5 errors")
	assert.Contains(t, err.Error(), `unknown tag option "primary"`)
	assert.Contains(t, err.Error(), `invalid size "big"`)
	assert.Contains(t, err.Error(), "field Parent: navigation field needs fk=<field>")

	_, err = Scan(reflect.TypeOf(42))
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Id":         "id",
		"CustomerId": "customer_id",
		"CustomerID": "customer_id",
		"HTTPServer": "http_server",
		"Line2Total": "line2_total",
		"already":    "already",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}

func TestTypeName(t *testing.T) {
	tagged := reflect.StructOf([]reflect.StructField{
		{Name: "Id", Type: reflect.TypeOf(int64(0)), Tag: `entity:"Invoice"`},
	})
	untagged := reflect.StructOf([]reflect.StructField{
		{Name: "Id", Type: reflect.TypeOf(int64(0))},
	})

	assert.Equal(t, "Invoice", TypeName(tagged))
	assert.Equal(t, "Invoice", TypeName(reflect.PointerTo(tagged)))
	assert.Equal(t, "", TypeName(untagged))
	assert.Equal(t, "Time", TypeName(reflect.TypeOf(&time.Time{})))
	assert.Equal(t, "", TypeName(nil))
}
