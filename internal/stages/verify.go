package stages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/marcohefti/docseal/internal/codes"
	"github.com/marcohefti/docseal/internal/schema"
)

type VerifyOpts struct {
	File string
	// Keyring is an armored public keyring. When set the signature is checked
	// in-process; otherwise gpg --verify is used against the user's keyring.
	Keyring string
}

// Verify checks the hash sidecar and the detached signature of File. Both
// must be present and PASS for a success record.
func (e Env) Verify(ctx context.Context, opts VerifyOpts) (Result, error) {
	if strings.TrimSpace(opts.File) == "" {
		return Result{}, codes.New(codes.Usage, "missing file to verify", "")
	}
	if _, err := os.Stat(opts.File); err != nil {
		return Result{}, codes.Wrap(codes.MissingArtifact, "file to verify not readable", opts.File, err)
	}

	hashStatus, hashErr := e.verifyHash(opts.File)
	sigStatus, signer, sigErr := e.verifySignature(ctx, opts)
	if notRun(sigErr) {
		return Result{}, sigErr
	}

	payload := map[string]any{"file": opts.File, "hashStatus": hashStatus, "signatureStatus": sigStatus}
	tool := hashTool
	if opts.Keyring == "" && sigStatus != schema.StatusMissing {
		tool = e.Tools.GPG
	}
	if signer != "" {
		payload["signer"] = signer
	}
	rec := schema.EvidenceRecord{Kind: schema.KindVerify, Tool: tool, Target: opts.File, Payload: payload}
	rec.Message = fmt.Sprintf("hash %s, signature %s", hashStatus, sigStatus)

	return e.finish(rec, errors.Join(hashErr, sigErr))
}

func (e Env) verifyHash(file string) (string, error) {
	sidecar := file + HashSuffix
	want, err := ReadSidecar(sidecar)
	if errors.Is(err, fs.ErrNotExist) {
		return schema.StatusMissing, codes.New(codes.MissingArtifact, "hash sidecar missing", sidecar)
	}
	if err != nil {
		return schema.StatusFail, err
	}
	got, err := FileSHA256(file)
	if err != nil {
		return schema.StatusFail, err
	}
	if got != want {
		return schema.StatusFail, codes.New(codes.HashMismatch, fmt.Sprintf("sha256 mismatch: sidecar %s, file %s", want, got), file)
	}
	return schema.StatusPass, nil
}

func (e Env) verifySignature(ctx context.Context, opts VerifyOpts) (string, string, error) {
	sig := opts.File + SignatureSuffix
	if _, err := os.Stat(sig); err != nil {
		return schema.StatusMissing, "", codes.New(codes.MissingArtifact, "detached signature missing", sig)
	}
	if opts.Keyring != "" {
		return checkWithKeyring(opts.Keyring, opts.File, sig)
	}
	if _, err := e.run(ctx, e.Tools.GPG, "--batch", "--verify", sig, opts.File); err != nil {
		if notRun(err) {
			return schema.StatusFail, "", err
		}
		return schema.StatusFail, "", codes.Wrap(codes.Signature, "signature check failed", sig, err)
	}
	return schema.StatusPass, "", nil
}

func checkWithKeyring(keyringPath, file, sig string) (string, string, error) {
	kf, err := os.Open(keyringPath)
	if err != nil {
		return schema.StatusFail, "", codes.Wrap(codes.Usage, "keyring not readable", keyringPath, err)
	}
	defer func() { _ = kf.Close() }()
	keyring, err := openpgp.ReadArmoredKeyRing(kf)
	if err != nil {
		return schema.StatusFail, "", codes.Wrap(codes.Signature, "keyring not parseable", keyringPath, err)
	}

	signed, err := os.Open(file)
	if err != nil {
		return schema.StatusFail, "", codes.Wrap(codes.IO, "open file", file, err)
	}
	defer func() { _ = signed.Close() }()
	sf, err := os.Open(sig)
	if err != nil {
		return schema.StatusFail, "", codes.Wrap(codes.IO, "open signature", sig, err)
	}
	defer func() { _ = sf.Close() }()

	entity, err := openpgp.CheckArmoredDetachedSignature(keyring, signed, sf, nil)
	if err != nil {
		return schema.StatusFail, "", codes.Wrap(codes.Signature, "signature does not verify", sig, err)
	}
	return schema.StatusPass, describeSigner(entity), nil
}

func describeSigner(e *openpgp.Entity) string {
	if e == nil || e.PrimaryKey == nil {
		return ""
	}
	id := e.PrimaryKey.KeyIdString()
	names := make([]string, 0, len(e.Identities))
	for name := range e.Identities {
		names = append(names, name)
	}
	if len(names) == 0 {
		return id
	}
	sort.Strings(names)
	return names[0] + " (" + id + ")"
}
