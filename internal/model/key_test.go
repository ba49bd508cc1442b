package model

import (
	"errors"
	"go/token"
	"go/types"
	"testing"
)

func ref(canonical string) TypeRef {
	return TypeRef{Canonical: canonical}
}

func TestKeyID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "plain type",
			key:  NewKey(ref("*db.Conn")),
			want: "*db.Conn",
		},
		{
			name: "qualified",
			key:  QualifiedKey(ref("string"), "primary"),
			want: "@primary string",
		},
		{
			name: "qualifier with members",
			key: Key{
				Type:      ref("http.Handler"),
				Qualifier: &AnnotationRef{Name: "contribution", Members: map[string]string{"element": "2"}},
			},
			want: "@contribution(element=2) http.Handler",
		},
		{
			name: "set contribution",
			key:  NewKey(ref("http.Handler")).WithContribution(ContributionSetElement),
			want: "http.Handler [set element]",
		},
		{
			name: "map contribution",
			key:  QualifiedKey(ref("Codec"), "json").WithContribution(ContributionMapEntry),
			want: "@json Codec [map entry]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.key.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyEqual(t *testing.T) {
	t.Parallel()

	a := QualifiedKey(ref("string"), "primary")
	b := QualifiedKey(ref("string"), "primary")
	c := QualifiedKey(ref("string"), "replica")

	if !a.Equal(b) {
		t.Error("identical keys not equal")
	}
	if a.Equal(c) {
		t.Error("differently qualified keys equal")
	}
	if a.Equal(a.WithContribution(ContributionSetElement)) {
		t.Error("contribution-tagged key equal to untagged key")
	}
}

func TestDerivedKeys(t *testing.T) {
	t.Parallel()

	base := QualifiedKey(ref("*db.Conn"), "primary")

	opt := OptionalKey(base)
	if opt.Equal(base) {
		t.Error("optional key collides with wrapped key")
	}
	if opt.Qualifier.Name != "primary" {
		t.Error("optional key dropped the wrapped qualifier")
	}

	mi := MembersInjectorKey(base)
	if mi.Equal(base) || mi.Equal(opt) {
		t.Error("members injector key collides with another derived key")
	}
}

func TestNewTypeRef(t *testing.T) {
	t.Parallel()

	got, err := NewTypeRef(types.Typ[types.String], nil, token.Position{})
	if err != nil {
		t.Fatalf("NewTypeRef(string) error: %v", err)
	}
	if got.Canonical != "string" {
		t.Errorf("Canonical = %q, want %q", got.Canonical, "string")
	}

	if _, err := NewTypeRef(nil, nil, token.Position{}); !errors.Is(err, ErrTypeNotPresent) {
		t.Errorf("NewTypeRef(nil) error = %v, want ErrTypeNotPresent", err)
	}
	if _, err := NewTypeRef(types.Typ[types.Invalid], nil, token.Position{}); !errors.Is(err, ErrTypeNotPresent) {
		t.Errorf("NewTypeRef(invalid) error = %v, want ErrTypeNotPresent", err)
	}
}

func TestRequestKindDeferred(t *testing.T) {
	t.Parallel()

	deferred := []RequestKind{RequestProvider, RequestLazy, RequestProducer, RequestProduced, RequestFuture}
	for _, k := range deferred {
		if !k.Deferred() {
			t.Errorf("%s.Deferred() = false, want true", k)
		}
	}
	immediate := []RequestKind{RequestInstance, RequestMembersInjector, RequestOptional}
	for _, k := range immediate {
		if k.Deferred() {
			t.Errorf("%s.Deferred() = true, want false", k)
		}
	}
}
