package keyvault

import (
	"github.com/itsGurdevSingh/keyvault/internal/blobstore"
	"github.com/itsGurdevSingh/keyvault/internal/cryptoprovider"
	"github.com/itsGurdevSingh/keyvault/internal/lockstore"
	"github.com/itsGurdevSingh/keyvault/internal/policystore"
	"github.com/itsGurdevSingh/keyvault/internal/txsession"
)

// The external collaborators spec §6 names each already have a proper home
// (their own package, so they can be reused outside keyvault); these aliases
// just give this package its own short, domain-flavored vocabulary for them.
type (
	CryptoProvider = cryptoprovider.Provider
	SigningKey     = cryptoprovider.SigningKey
	JWK            = cryptoprovider.JWK

	BlobStore = blobstore.Store

	PolicyStore = policystore.Store
	Policy      = policystore.Policy

	LockStore = lockstore.Store

	Session = txsession.Session
)
