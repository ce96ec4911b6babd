package contentbuilder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// APITime handles SFMC dates, which may come without a timezone
// (e.g., "2020-09-09T04:04:02.257").
type APITime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler for APITime
func (t *APITime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var timeStr string
	if err := json.Unmarshal(data, &timeStr); err != nil {
		return err
	}
	if timeStr == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, format := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(format, timeStr); err == nil {
			t.Time = parsed
			return nil
		}
	}

	// No timezone; drop fractional seconds.
	if before, _, found := strings.Cut(timeStr, "."); found {
		timeStr = before
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05", timeStr); err == nil {
		t.Time = parsed
		return nil
	}

	return fmt.Errorf("unable to parse time string: %s", timeStr)
}

// MarshalJSON implements json.Marshaler for APITime
func (t APITime) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// SfmcResponse is the paged envelope of SFMC list endpoints.
type SfmcResponse[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Items    []T `json:"items"`
}

type AssetChannels struct {
	Email bool `json:"email"`
	Web   bool `json:"web"`
}

type AssetType struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// HTMLBlockAssetType is the base asset type of HTML content blocks.
// https://developer.salesforce.com/docs/marketing/marketing-cloud/guide/base-asset-types.html
var HTMLBlockAssetType = AssetType{ID: 197, Name: "htmlblock"}

type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type SimpleOperator string

const (
	OperatorEqual              SimpleOperator = "equal"
	OperatorNotEqual           SimpleOperator = "notEqual"
	OperatorLessThan           SimpleOperator = "lessThan"
	OperatorLessThanOrEqual    SimpleOperator = "lessThanOrEqual"
	OperatorGreaterThan        SimpleOperator = "greaterThan"
	OperatorGreaterThanOrEqual SimpleOperator = "greaterThanOrEqual"
	OperatorLike               SimpleOperator = "like"
	OperatorIsNull             SimpleOperator = "isNull"
	OperatorIsNotNull          SimpleOperator = "isNotNull"
	OperatorContains           SimpleOperator = "contains"
	OperatorMustContain        SimpleOperator = "mustcontain"
	OperatorStartsWith         SimpleOperator = "startsWith"
	OperatorIn                 SimpleOperator = "in"
	OperatorWhere              SimpleOperator = "where"
)

type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// QueryNode is either a Query or a MultiQuery.
type QueryNode interface {
	queryNode()
}

type Query struct {
	Property       string         `json:"property"`
	SimpleOperator SimpleOperator `json:"simpleOperator"`
	Value          string         `json:"value"`
}

func (Query) queryNode() {}

type MultiQuery struct {
	LeftOperand     QueryNode       `json:"leftOperand"`
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty"`
	RightOperand    QueryNode       `json:"rightOperand,omitempty"`
}

func (MultiQuery) queryNode() {}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

type Sort struct {
	Property  string        `json:"property"`
	Direction SortDirection `json:"direction"`
}

type AssetQueryRequest struct {
	Page   Page      `json:"page"`
	Query  QueryNode `json:"query"`
	Sort   []Sort    `json:"sort,omitempty"`
	Fields []string  `json:"fields,omitempty"`
}

type HTMLEmailContent struct {
	Content string `json:"content"`
}

type AssetViews struct {
	HTML HTMLEmailContent `json:"html"`
}

type User struct {
	ID    int    `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type SharingType string

const (
	SharingEdit  SharingType = "edit"
	SharingLocal SharingType = "local"
	SharingView  SharingType = "view"
)

type SharingProperties struct {
	SharedWith  []int       `json:"sharedWith"`
	SharingType SharingType `json:"sharingType"`
}

// EnterpriseSharing shares with the entire enterprise; "edit" is the only
// sharing type SFMC accepts for it.
func EnterpriseSharing() SharingProperties {
	return SharingProperties{SharedWith: []int{0}, SharingType: SharingEdit}
}

// CategoryRef points an asset at a category.
type CategoryRef struct {
	ID int `json:"id"`
}

type CreateAssetRequest struct {
	AssetType         AssetType         `json:"assetType"`
	Channels          AssetChannels     `json:"channels"`
	CustomerKey       string            `json:"customerKey"`
	Description       string            `json:"description,omitempty"`
	Name              string            `json:"name"`
	Views             *AssetViews       `json:"views,omitempty"`
	SharingProperties SharingProperties `json:"sharingProperties"`
	// Content is used by htmlblock assets instead of Views.
	Content  string       `json:"content,omitempty"`
	Category *CategoryRef `json:"category,omitempty"`
}

type PatchAssetRequest struct {
	Views   *AssetViews `json:"views,omitempty"`
	Content string      `json:"content,omitempty"`
}

type Thumbnail struct {
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type Asset struct {
	ID                int                `json:"id"`
	CustomerKey       string             `json:"customerKey"`
	ObjectID          string             `json:"objectID"`
	ContentType       string             `json:"contentType"`
	AssetType         AssetType          `json:"assetType"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Channels          AssetChannels      `json:"channels"`
	Content           string             `json:"content,omitempty"`
	Views             *AssetViews        `json:"views,omitempty"`
	SharingProperties *SharingProperties `json:"sharingProperties,omitempty"`
	Category          *Category          `json:"category,omitempty"`
	Thumbnail         *Thumbnail         `json:"thumbnail,omitempty"`
	CreatedDate       APITime            `json:"createdDate"`
	CreatedBy         *User              `json:"createdBy,omitempty"`
	ModifiedDate      APITime            `json:"modifiedDate"`
	ModifiedBy        *User              `json:"modifiedBy,omitempty"`
}

type CategoryType string

const (
	CategoryTypeAsset       CategoryType = "asset"
	CategoryTypeAssetShared CategoryType = "asset-shared"
)

type Category struct {
	ID           int          `json:"id"`
	EnterpriseID int          `json:"enterpriseId,omitempty"`
	MemberID     int          `json:"memberId,omitempty"`
	ParentID     int          `json:"parentId"`
	CategoryType CategoryType `json:"categoryType,omitempty"`
	Description  string       `json:"description,omitempty"`
	Name         string       `json:"name"`
}

// https://developer.salesforce.com/docs/marketing/marketing-cloud/guide/createCategory.html
type CreateCategoryRequest struct {
	ParentID          int               `json:"parentId"`
	Name              string            `json:"name"`
	CategoryType      CategoryType      `json:"categoryType"`
	SharingProperties SharingProperties `json:"sharingProperties"`
}

// Organization holds the subset of the organization properties we use.
type Organization struct {
	MemberID     int `json:"member_id"`
	EnterpriseID int `json:"enterprise_id"`
}

type OrgRestEndpoints struct {
	RestInstanceURL string `json:"rest_instance_url"`
	SoapInstanceURL string `json:"soap_instance_url"`
}

// UserInfo is the subset of the userinfo response the application reads.
// https://developer.salesforce.com/docs/marketing/marketing-cloud/guide/getUserInfo.html
type UserInfo struct {
	Organization Organization     `json:"organization"`
	Rest         OrgRestEndpoints `json:"rest"`
	User         User             `json:"user"`
}
